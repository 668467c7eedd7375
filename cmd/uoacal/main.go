package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"uoacal/internal/capture"
	"uoacal/internal/config"
	"uoacal/internal/ics"
	appLog "uoacal/internal/log"
	"uoacal/internal/model"
	"uoacal/internal/sheet"
	"uoacal/internal/timetable"
)

var version = "0.1.0"

// flagConfig holds flag values shared by all subcommands.
type flagConfig struct {
	configPath string
	logLevel   string
	url        string
	mode       string
}

var flags flagConfig

var rootCmd = &cobra.Command{
	Use:   "uoacal",
	Short: "Export the University of Auckland weekly timetable as a calendar",
	Long: `uoacal reads the "My Weekly Schedule" grid of the student portal,
extracts one entry per course meeting and exports them as weekly
recurring iCalendar events.

The page is read from a saved HTML file, from stdin ("-") or from the
portal URL, rendered in Chromium or fetched over plain HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Print the courses found on the timetable page",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExtract,
}

var exportCmd = &cobra.Command{
	Use:   "export [file|-]",
	Short: "Write the courses as an .ics calendar",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var debugCmd = &cobra.Command{
	Use:   "debug [file|-]",
	Short: "Print a structural report of the timetable grid",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDebug,
}

var previewCmd = &cobra.Command{
	Use:   "preview [ics]",
	Short: "List the meetings an exported calendar produces in the coming days",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPreview,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "uoacal.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: DEBUG, INFO, ERROR (overrides config)")

	for _, c := range []*cobra.Command{extractCmd, exportCmd, debugCmd, serveCmd} {
		c.Flags().StringVar(&flags.url, "url", "", "Timetable page URL (overrides config)")
		c.Flags().StringVar(&flags.mode, "mode", "", "URL retrieval mode: browser or http (overrides config)")
	}

	extractCmd.Flags().Bool("json", false, "Print courses as JSON")
	exportCmd.Flags().StringP("out", "o", "", "Output .ics path, \"-\" for stdout (default from config)")
	exportCmd.Flags().String("xlsx", "", "Also write an .xlsx workbook to this path")
	previewCmd.Flags().Int("days", 0, "Number of days to list (default from config)")

	rootCmd.AddCommand(extractCmd, exportCmd, debugCmd, previewCmd, serveCmd)
}

func main() {
	err := rootCmd.Execute()
	appLog.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies logging settings and
// flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = strings.ToUpper(flags.logLevel)
	}
	if flags.url != "" {
		cfg.Source.URL = flags.url
		cfg.Source.File = ""
	}
	if flags.mode != "" {
		cfg.Source.Mode = flags.mode
	}
	cfg.Normalize()

	appLog.SetFormat(cfg.LogFormat)
	appLog.SetLevel(appLog.Level(cfg.LogLevel))
	appLog.Debug("effective config",
		"config_path", flags.configPath,
		"timezone", cfg.Timezone,
		"source_mode", cfg.Source.Mode,
		"source_file", cfg.Source.File,
		"has_url", cfg.Source.URL != "",
	)
	return cfg, nil
}

// sourceFor builds the page source; a positional file argument wins over
// the config.
func sourceFor(cfg *config.Config, args []string) capture.Source {
	src := capture.Source{
		File: cfg.Source.File,
		URL:  cfg.Source.URL,
		Mode: capture.Mode(cfg.Source.Mode),
		Render: capture.RenderOptions{
			WaitSelector: cfg.Capture.WaitSelector,
			UserDataDir:  cfg.Capture.UserDataDir,
			Headless:     !cfg.Capture.Headful,
			Timeout:      cfg.CaptureTimeout(),
		},
		Fetcher: capture.NewFetcher(cfg.Source.CacheDir, cfg.Source.Cookie),
	}
	if len(args) > 0 {
		src.File = args[0]
	}
	return src
}

func loadCourses(ctx context.Context, src capture.Source) ([]model.Course, error) {
	body, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return timetable.ExtractHTML(bytes.NewReader(body))
}

func loadDocument(ctx context.Context, src capture.Source) (*goquery.Document, error) {
	body, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse timetable page: %w", err)
	}
	return doc, nil
}

func encoderFor(cfg *config.Config) ics.Encoder {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("invalid timezone, using local time", err, "timezone", cfg.Timezone)
	}
	return ics.Encoder{Location: loc}
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	courses, err := loadCourses(cmd.Context(), sourceFor(cfg, args))
	if err != nil {
		return err
	}
	appLog.Info("extracted courses", "count", len(courses))

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, courses)
	}
	return writeCourseTable(out, courses)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	courses, err := loadCourses(cmd.Context(), sourceFor(cfg, args))
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		appLog.Info("no courses found; check that the page shows the weekly schedule grid")
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		outPath = cfg.Output
	}
	if err := writeOutput(cmd.OutOrStdout(), outPath, func(w io.Writer) error {
		return encoderFor(cfg).Write(w, courses)
	}); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	appLog.Info("calendar exported", "path", outPath, "courses", len(courses))

	if xlsxPath, _ := cmd.Flags().GetString("xlsx"); xlsxPath != "" {
		if err := writeOutput(cmd.OutOrStdout(), xlsxPath, func(w io.Writer) error {
			return sheet.Write(w, courses)
		}); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		appLog.Info("workbook exported", "path", xlsxPath)
	}
	return nil
}

func runDebug(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	doc, err := loadDocument(cmd.Context(), sourceFor(cfg, args))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), timetable.Inspect(doc))
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Output
	if len(args) > 0 {
		path = args[0]
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read calendar: %w", err)
	}
	events, err := ics.ParseICS(body)
	if err != nil {
		return err
	}

	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		days = cfg.PreviewDays
	}
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("invalid timezone, using local time", err, "timezone", cfg.Timezone)
	}
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	res, err := ics.Expand(events, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      start,
		RangeEnd:        start.AddDate(0, 0, days),
	})
	if err != nil {
		return err
	}
	if len(res.InvalidRules) > 0 || len(res.TruncatedEvents) > 0 {
		appLog.Info("some events were not fully expanded",
			"invalid_rules", len(res.InvalidRules),
			"truncated_events", len(res.TruncatedEvents),
		)
	}
	return writeMeetingTable(cmd.OutOrStdout(), res.Meetings)
}

// writeOutput opens path ("-" is out) and hands it to write.
func writeOutput(out io.Writer, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCourseTable(w io.Writer, courses []model.Course) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tTIME\tCODE\tROOM\tBUILDING")
	for _, c := range courses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Weekday, c.Time, c.Code, c.Room, c.Building)
	}
	return tw.Flush()
}

func writeMeetingTable(w io.Writer, meetings []model.Meeting) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSTART\tEND\tSUMMARY\tLOCATION")
	for _, m := range meetings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			m.Start.Format("Mon 2006-01-02"),
			m.Start.Format("15:04"),
			m.End.Format("15:04"),
			m.Summary,
			m.Location,
		)
	}
	return tw.Flush()
}
