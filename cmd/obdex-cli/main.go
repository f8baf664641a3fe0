/*------------------------------------------------------------------
 *
 * Purpose:	Command-line driver for the obdex compiler/decoder.
 *
 * Description:	Builds a request for one catalog parameter, prints the
 *		synthesized frames, and if raw response frames were
 *		supplied on the command line, parses and prints the
 *		decoded results. In the teacher's cmd/<tool>/main.go style:
 *		flat pflag options, no subcommand framework (see
 *		kissutil.go, atest.go).
 *
 *------------------------------------------------------------------*/

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/obdex-go/obdex/obdex"
)

func main() {
	catalogPath := pflag.String("catalog", "", "XML catalog document to load (required)")
	configPath := pflag.String("config", "", "obdex.yaml runtime config (optional)")
	specName := pflag.String("spec", "", "catalog spec name")
	protocol := pflag.String("protocol", "", "catalog protocol name")
	address := pflag.String("address", "", "catalog address name")
	parameter := pflag.String("parameter", "", "catalog parameter name")
	frames := pflag.StringArray("frame", nil, "a raw response frame, space-separated hex bytes (repeatable)")
	list := pflag.Bool("list", false, "print parameter names for --spec/--protocol/--address and exit")
	logLevel := pflag.String("log-level", "info", "trace|debug|info|warn|error")
	help := pflag.Bool("help", false, "display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: obdex-cli --catalog <path> --spec <name> --protocol <name> --address <name> --parameter <name> [--frame <hex>]...\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || *catalogPath == "" {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg := obdex.DefaultConfig()
	searchPaths := []string{*configPath}
	if *configPath == "" {
		searchPaths = defaultConfigSearchPaths()
	}
	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		loaded, err := obdex.LoadConfig(p)
		if err != nil {
			continue
		}
		cfg = loaded
		break
	}

	if *logLevel == "info" && cfg.LogLevel != "" {
		*logLevel = cfg.LogLevel
	}
	logger := obdex.NewLogger(os.Stderr, obdex.ParseLogLevel(*logLevel))

	catalogFile, err := os.Open(*catalogPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer catalogFile.Close()

	catalog, err := obdex.LoadCatalog(catalogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *list {
		for _, name := range catalog.ParameterNames(*specName, *protocol, *address) {
			fmt.Println(name)
		}
		return
	}

	engine, err := obdex.NewEngine(catalog, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	pf := obdex.NewParameterFrame(*specName, *protocol, *address, *parameter)
	if err := engine.Build(pf); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for i, md := range pf.ListMessageData {
		for j, reqFrame := range md.ListReqDataBytes {
			fmt.Printf("request[%d][%d]: header=%s data=%s\n", i, j, hexJoin(md.ReqHeaderBytes), hexJoin(reqFrame))
		}
	}

	if len(*frames) == 0 {
		return
	}

	rawFrames := make([][]byte, 0, len(*frames))
	for _, f := range *frames {
		b, err := parseHexFrame(f)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		rawFrames = append(rawFrames, b)
	}
	for i := range pf.ListMessageData {
		pf.ListMessageData[i].ListRawFrames = rawFrames
	}

	var results []obdex.Data
	if err := engine.Parse(pf, &results); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for _, d := range results {
		fmt.Printf("%s (source %s):\n", d.ParameterName, strings.TrimSpace(d.SourceAddress))
		for _, n := range d.Numericals {
			fmt.Printf("  %s = %v %s [%v, %v]\n", n.PropertyName, n.Value, n.Units, n.Min, n.Max)
		}
		for _, l := range d.Literals {
			label := l.ValueIfFalse
			if l.Value {
				label = l.ValueIfTrue
			}
			fmt.Printf("  %s = %v (%s)\n", l.PropertyName, l.Value, label)
		}
	}
}

func hexJoin(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = obdex.HexOfByte(v)
	}
	return strings.Join(parts, " ")
}

func parseHexFrame(s string) ([]byte, error) {
	fields := strings.Fields(s)
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		b, err := obdex.ByteOfHex(f)
		if err != nil {
			return nil, fmt.Errorf("obdex-cli: %q: %w", s, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// defaultConfigSearchPaths lists where obdex.yaml is looked for when
// no --config is given: the current directory, then alongside the
// binary, then a fixed config directory.
func defaultConfigSearchPaths() []string {
	exe, err := os.Executable()
	paths := []string{"obdex.yaml"}
	if err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "obdex.yaml"))
	}
	return append(paths, "/etc/obdex/obdex.yaml")
}
