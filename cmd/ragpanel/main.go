// Command ragpanel is an interactive terminal client for a document-QA
// backend: ingest files or pasted text, ask questions, and follow the
// numbered citations back to their sources.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrel-dev/ragpanel/pkg/citation"
	"github.com/kestrel-dev/ragpanel/pkg/config"
	"github.com/kestrel-dev/ragpanel/pkg/logging"
	"github.com/kestrel-dev/ragpanel/pkg/observe"
	"github.com/kestrel-dev/ragpanel/pkg/orchestrator"
	"github.com/kestrel-dev/ragpanel/pkg/ragapi"
	"github.com/kestrel-dev/ragpanel/pkg/session"
)

var (
	bold     = color.New(color.Bold).SprintFunc()
	cyan     = color.New(color.FgCyan).SprintFunc()
	green    = color.New(color.FgGreen).SprintFunc()
	yellow   = color.New(color.FgYellow).SprintFunc()
	red      = color.New(color.FgRed).SprintFunc()
	magenta  = color.New(color.FgMagenta, color.Bold).SprintFunc()
	citeMark = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

func main() {
	cfg := config.Load()

	var (
		backendURL  = flag.String("backend", cfg.BackendURL, "Backend base URL")
		logLevel    = flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty to disable)")
	)
	flag.Parse()

	log := logging.New(logging.Config{Level: *logLevel, Pretty: true})

	var metrics *observe.Metrics
	if *metricsAddr != "" {
		metrics = observe.NewMetrics(prometheus.DefaultRegisterer)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	client := ragapi.NewClient(*backendURL,
		ragapi.WithTimeout(cfg.RequestTimeout),
		ragapi.WithSourceCacheTTL(cfg.SourceCacheTTL),
		ragapi.WithLogger(log),
	)

	orc := orchestrator.New(client,
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithTimings(orchestrator.Timings{
			RevealInterval:     cfg.RevealInterval,
			HintInterval:       cfg.HintInterval,
			ProgressInterval:   cfg.ProgressInterval,
			IngestSuccessDwell: cfg.IngestSuccessDwell,
			HighlightDwell:     cfg.HighlightDwell,
			MaxIngestBytes:     cfg.MaxIngestBytes,
		}),
	)

	fmt.Println(magenta("ragpanel"), "— ask questions against your documents")
	fmt.Printf("Backend: %s\n", cyan(*backendURL))
	fmt.Println("Commands: :ingest <file>, :paste, :sources, :cite N, :quit")
	fmt.Println()

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for {
		fmt.Print(bold("> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == ":quit" || line == ":q" || line == "exit":
			return
		case line == ":sources":
			showSources(ctx, orc)
		case line == ":paste":
			runIngest(ctx, orc, ragapi.IngestRequest{Text: readPaste(scanner)})
		case strings.HasPrefix(line, ":ingest "):
			path := strings.TrimSpace(strings.TrimPrefix(line, ":ingest "))
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Println(red("cannot read file:"), err)
				continue
			}
			runIngest(ctx, orc, ragapi.IngestRequest{
				FileName: filepath.Base(path),
				File:     data,
			})
		case strings.HasPrefix(line, ":cite "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":cite ")))
			if err != nil {
				fmt.Println(red("usage: :cite N"))
				continue
			}
			runCite(orc, n)
		default:
			runQuery(ctx, orc, line)
		}
	}
}

// readPaste collects lines until a lone "." terminator.
func readPaste(scanner *bufio.Scanner) string {
	fmt.Println("Paste text, end with a single '.' on its own line:")
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func runIngest(ctx context.Context, orc *orchestrator.Orchestrator, req ragapi.IngestRequest) {
	if err := orc.SubmitIngest(ctx, req); err != nil {
		fmt.Println(red("✗"), err)
		return
	}

	lastProgress := -1
	for {
		snap := orc.Snapshot().Ingest
		switch snap.Phase {
		case session.PhaseInFlight:
			if snap.Progress != lastProgress {
				fmt.Printf("\r%s %s %d%%", yellow("⠿"), "Indexing document...", snap.Progress)
				lastProgress = snap.Progress
			}
		case session.PhaseSuccess:
			fmt.Printf("\r%s Indexed successfully — %s chunks created\n",
				green("✓"), bold(strconv.Itoa(snap.Chunks)))
			return
		case session.PhaseFailure:
			fmt.Printf("\r%s %s\n", red("✗"), snap.Error)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func runQuery(ctx context.Context, orc *orchestrator.Orchestrator, question string) {
	orc.SubmitQuery(ctx, question)

	// In-flight: show the cycling pipeline hint.
	lastHint := session.PhaseHint("")
	for {
		snap := orc.Snapshot().Query
		if snap.Phase != session.PhaseInFlight {
			break
		}
		if snap.Hint != lastHint {
			fmt.Printf("\r%s %s...        ", yellow("⠿"), snap.Hint)
			lastHint = snap.Hint
		}
		time.Sleep(50 * time.Millisecond)
	}
	fmt.Print("\r                        \r")

	snap := orc.Snapshot()
	if snap.Query.Phase == session.PhaseFailure {
		fmt.Println(red("✗"), snap.Query.Error)
		return
	}

	// Progressive reveal: print the newly visible suffix each poll.
	printed := 0
	for {
		snap = orc.Snapshot()
		visible := []rune(snap.Visible)
		if printed < len(visible) {
			fmt.Print(string(visible[printed:]))
			printed = len(visible)
		}
		if snap.RevealDone {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Println()
	fmt.Println()

	printSources(snap.Query.Sources, snap.HighlightedSource)
	printMetrics(snap.Query.Metrics)
}

func runCite(orc *orchestrator.Orchestrator, n int) {
	orc.ClickCitation(n)
	snap := orc.Snapshot()

	if scroll := orc.TakeScroll(); scroll != nil && scroll.Target == session.ScrollSource {
		fmt.Printf("%s source [%d]\n", cyan("→"), scroll.SourceIndex)
	} else {
		fmt.Println(yellow("no matching source entry"))
	}
	if len(snap.Paragraphs) > 0 {
		fmt.Println(formatAnswer(snap.Paragraphs))
		fmt.Println()
	}
	printSources(snap.Query.Sources, snap.HighlightedSource)
}

func showSources(ctx context.Context, orc *orchestrator.Orchestrator) {
	list, err := orc.ListSources(ctx)
	if err != nil {
		fmt.Println(red("✗"), ragapi.UserMessage(err))
		return
	}
	fmt.Printf("%s (%d)\n", bold("Indexed documents"), list.Count)
	for _, s := range list.Sources {
		fmt.Printf("  %s %s\n", cyan("•"), s)
	}
}

func printSources(sources []session.Source, highlighted int) {
	if len(sources) == 0 {
		return
	}
	fmt.Printf("%s (%d)\n", bold("Sources"), len(sources))
	for _, s := range sources {
		marker := " "
		if s.Index == highlighted {
			marker = magenta("▶")
		}
		label := s.Label
		if s.ChunkIndex != nil {
			label = fmt.Sprintf("%s (chunk %d)", label, *s.ChunkIndex+1)
		}
		preview := s.Content
		if len(preview) > 80 {
			preview = preview[:80] + "…"
		}
		fmt.Printf("%s %s %s — %s\n", marker, citeMark(fmt.Sprintf("[%d]", s.Index)), bold(label), preview)
	}
	fmt.Println()
}

func printMetrics(m *session.QueryMetrics) {
	if m == nil {
		return
	}
	fmt.Printf("%s  %s ms · %d sources · %d tokens · %s · %s\n",
		bold("⚡"), green(strconv.FormatInt(m.ElapsedMs, 10)),
		m.SourceCount, m.TokensUsed, m.Reranker, m.Model)
}

// formatAnswer renders a parsed answer with colored citation markers; used
// when reprinting a completed answer (e.g. after :cite).
func formatAnswer(paragraphs []citation.Paragraph) string {
	var b strings.Builder
	for i, p := range paragraphs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		for _, seg := range p {
			if seg.Kind == citation.KindCitation {
				b.WriteString(citeMark(seg.Raw))
				continue
			}
			b.WriteString(seg.Content)
		}
	}
	return b.String()
}
