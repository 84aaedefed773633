package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quiver"
	"github.com/ajitpratap0/quiver/pkg/arrowconv"
	"github.com/ajitpratap0/quiver/pkg/config"
	"github.com/ajitpratap0/quiver/pkg/json"
	"github.com/ajitpratap0/quiver/pkg/logger"
)

var version = "0.1.0"

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "quiver",
		Short: "Quiver - record to columnar conversion",
		Long: `Quiver converts sequences of arbitrarily shaped records to columnar memory
and back. It infers schemas from the records themselves, compiles them into
buffer programs and wraps the result in Arrow record batches.`,
	}

	var logLevel string
	var debugProgram bool
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&debugProgram, "debug-program", false, "Log compiled buffer programs")

	viper.SetEnvPrefix("QUIVER")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("debug_program", root.PersistentFlags().Lookup("debug-program"))

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(logger.Config{Level: viper.GetString("log_level")}); err != nil {
			return err
		}
		if viper.GetBool("debug_program") {
			config.Configure(func(c *config.Configuration) {
				c.DebugPrintProgram = true
			})
		}
		return nil
	}

	root.AddCommand(versionCmd())
	root.AddCommand(traceCmd())
	root.AddCommand(convertCmd())
	root.AddCommand(readCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Quiver v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func traceCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Infer the columnar schema of newline-delimited JSON records",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(input)
			if err != nil {
				return err
			}
			fields, err := quiver.TraceFields(records)
			if err != nil {
				return err
			}
			for i := range fields {
				fmt.Println(fields[i].String())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "Input file (NDJSON), - for stdin")
	return cmd
}

func convertCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert newline-delimited JSON records to an Arrow IPC file",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(input)
			if err != nil {
				return err
			}
			rec, err := arrowconv.SerializeRecords(records, nil)
			if err != nil {
				return err
			}
			defer rec.Release()

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()

			w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()))
			if err != nil {
				return err
			}
			if err := w.Write(rec); err != nil {
				w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			logger.Info("wrote arrow file",
				zap.String("path", output),
				zap.Int64("rows", rec.NumRows()),
				zap.Int64("columns", rec.NumCols()),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "Input file (NDJSON), - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "out.arrow", "Output Arrow IPC file")
	return cmd
}

func readCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read an Arrow IPC file back as newline-delimited JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()

			r, err := ipc.NewFileReader(f)
			if err != nil {
				return err
			}
			defer r.Close()

			out := bufio.NewWriter(os.Stdout)
			defer out.Flush()
			for i := 0; i < r.NumRecords(); i++ {
				rec, err := r.RecordAt(i)
				if err != nil {
					return err
				}
				if err := writeRecords(out, rec); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input Arrow IPC file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// readRecords loads one JSON object per line. Numbers arrive as float64, so
// columns traced from CLI input are floating point.
func readRecords(path string) ([]map[string]interface{}, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var records []map[string]interface{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record map[string]interface{}
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}

func writeRecords(w io.Writer, rec arrow.Record) error {
	var rows []map[string]interface{}
	if err := arrowconv.DeserializeRecords(rec, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		// The encoder terminates each row with a newline, giving JSONL
		// directly; the pooled buffer is released after the write.
		data, release, err := json.MarshalToBuffer(row)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		release()
		if err != nil {
			return err
		}
	}
	return nil
}
