package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/gizmo/pkg/entity"
	"github.com/orneryd/gizmo/pkg/field"
	"github.com/orneryd/gizmo/pkg/journal"
	"github.com/orneryd/gizmo/pkg/logging"
	"github.com/orneryd/gizmo/pkg/mapper"
	"github.com/orneryd/gizmo/pkg/query"
	"github.com/orneryd/gizmo/pkg/transport"
)

// ============================================================================
// exec
// ============================================================================

func newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a raw Gremlin script",
		Example: `  gizmo exec -e "g.V(x).valueMap()" -p x=1
  gizmo exec -f report.groovy`,
		RunE: runExec,
	}
	cmd.Flags().StringP("script", "e", "", "Script text")
	cmd.Flags().StringP("file", "f", "", "Read the script from a file")
	cmd.Flags().StringArrayP("param", "p", nil, "Binding as name=value; values are parsed as YAML scalars")
	return cmd
}

func runExec(cmd *cobra.Command, args []string) error {
	script, _ := cmd.Flags().GetString("script")
	file, _ := cmd.Flags().GetString("file")
	rawParams, _ := cmd.Flags().GetStringArray("param")

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		script = string(data)
	}
	if strings.TrimSpace(script) == "" {
		return errors.New("no script: use --script or --file")
	}
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	client := rt.client()
	defer client.Close()

	m := mapper.New(client, mapper.WithLogger(rt.log.Named(logging.ComponentMapper)), mapper.WithMetrics(rt.metrics))
	ctx, cancel := rt.requestContext(cmd.Context())
	defer cancel()
	coll, err := m.Query(ctx, script, params)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), coll.Rows())
}

func parseParams(raw []string) (map[string]any, error) {
	params := make(map[string]any, len(raw))
	for _, p := range raw {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid param %q, want name=value", p)
		}
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil || v == nil {
			v = value
		}
		params[name] = v
	}
	return params, nil
}

// ============================================================================
// compile / apply
// ============================================================================

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile -f batch.yaml",
		Short: "Print the script a YAML batch compiles to, without sending it",
		RunE:  runCompile,
	}
	cmd.Flags().StringP("file", "f", "", "Batch file")
	cmd.Flags().Bool("inline", false, "Substitute bindings into the script for reading")
	cmd.Flags().Bool("auto-commit", true, "Omit the explicit transaction commit")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runCompile(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	inline, _ := cmd.Flags().GetBool("inline")
	autoCommit, _ := cmd.Flags().GetBool("auto-commit")

	b, err := readBatch(file)
	if err != nil {
		return err
	}
	reg := entity.NewRegistry()
	m := mapper.New(&transport.DryRun{}, mapper.WithRegistry(reg), mapper.WithAutoCommit(autoCommit))
	if err := b.queue(m, reg); err != nil {
		return err
	}
	return printScript(cmd.OutOrStdout(), m, inline)
}

func printScript(w io.Writer, m *mapper.Mapper, inline bool) error {
	script, params := m.Script()
	if inline {
		_, err := fmt.Fprintln(w, query.Debug(script, params))
		return err
	}
	if _, err := fmt.Fprintln(w, script); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return writeJSON(w, params)
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply -f batch.yaml",
		Short: "Compile a YAML batch and flush it in one request",
		RunE:  runApply,
	}
	cmd.Flags().StringP("file", "f", "", "Batch file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	b, err := readBatch(file)
	if err != nil {
		return err
	}

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	client := rt.client()
	defer client.Close()

	reg := entity.NewRegistry()
	opts := []mapper.Option{
		mapper.WithLogger(rt.log.Named(logging.ComponentMapper)),
		mapper.WithMetrics(rt.metrics),
		mapper.WithRegistry(reg),
		mapper.WithGraph(rt.cfg.Mapper.Graph),
		mapper.WithAutoCommit(rt.cfg.Mapper.AutoCommit),
	}
	j, err := rt.openJournal(false)
	if err != nil {
		return err
	}
	if j != nil {
		defer j.Close()
		opts = append(opts, mapper.WithJournal(j))
	}

	m := mapper.New(client, opts...)
	if err := b.queue(m, reg); err != nil {
		return err
	}
	ctx, cancel := rt.requestContext(cmd.Context())
	defer cancel()
	coll, err := m.Flush(ctx)
	if err != nil {
		return err
	}
	return writeEntities(cmd.OutOrStdout(), coll)
}

func writeEntities(w io.Writer, coll *mapper.Collection) error {
	out := make([]map[string]any, 0, coll.Len())
	for e, ok := coll.Next(); ok; e, ok = coll.Next() {
		e.SetRepresentation(field.Native)
		row := e.Values()
		delete(row, entity.FieldDiscriminator)
		out = append(out, row)
	}
	return writeJSON(w, out)
}

// ============================================================================
// journal
// ============================================================================

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and replay flushed batches",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded batches, newest first",
		RunE:  runJournalList,
	}
	list.Flags().IntP("limit", "n", 20, "Maximum number of batches")
	list.Flags().String("status", "", "Only batches with this status (ok, error, canceled)")
	cmd.AddCommand(list)
	cmd.AddCommand(&cobra.Command{
		Use:   "show SEQ",
		Short: "Print a recorded batch",
		Args:  cobra.ExactArgs(1),
		RunE:  runJournalShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "replay SEQ",
		Short: "Send a recorded batch again",
		Args:  cobra.ExactArgs(1),
		RunE:  runJournalReplay,
	})
	return cmd
}

func runJournalList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	j, err := rt.openJournal(true)
	if err != nil {
		return err
	}
	defer j.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSTARTED\tSTATUS\tDURATION\tROWS\tERROR")
	n := 0
	err = j.Iterate(true, func(b *journal.Batch) bool {
		if status != "" && b.Status != status {
			return true
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			b.Seq, b.StartedAt.Format(time.RFC3339), b.Status, b.Duration.Round(time.Millisecond), b.Rows, b.Error)
		n++
		return limit <= 0 || n < limit
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

func loadBatch(rt *runtime, arg string) (*journal.Journal, *journal.Batch, error) {
	seq, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid sequence number %q", arg)
	}
	j, err := rt.openJournal(true)
	if err != nil {
		return nil, nil, err
	}
	b, err := j.Get(seq)
	if err != nil {
		_ = j.Close()
		return nil, nil, err
	}
	return j, b, nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	j, b, err := loadBatch(rt, args[0])
	if err != nil {
		return err
	}
	defer j.Close()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "# seq %d, %s, %s\n", b.Seq, b.Status, b.StartedAt.Format(time.RFC3339))
	if b.Error != "" {
		fmt.Fprintf(w, "# error: %s\n", b.Error)
	}
	fmt.Fprintln(w, b.Script)
	fmt.Fprintln(w)
	return writeJSON(w, b.Params)
}

func runJournalReplay(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	j, b, err := loadBatch(rt, args[0])
	if err != nil {
		return err
	}
	defer j.Close()

	client := rt.client()
	defer client.Close()
	ctx, cancel := rt.requestContext(cmd.Context())
	defer cancel()
	rows, err := client.Execute(ctx, b.Script, b.Params)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), rows)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
