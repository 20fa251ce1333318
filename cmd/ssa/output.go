package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"social-support/internal/app"
	apperrors "social-support/internal/common/errors"
	"social-support/internal/common/validation"
	"social-support/internal/form"
)

// errSilent reports failure after the output was already printed.
var errSilent = errors.New("")

func jsonOutput() bool { return viper.GetBool("json") }

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(err error) {
	if errors.Is(err, errSilent) {
		return
	}
	if stdErr, ok := apperrors.AsStandard(err); ok {
		if jsonOutput() {
			_ = printJSON(map[string]interface{}{
				"error":      apperrors.UserMessage(err),
				"code":       stdErr.Code,
				"messageKey": apperrors.MessageKey(err),
				"retryable":  stdErr.Retryable,
			})
			return
		}
		fmt.Fprintln(os.Stderr, "error:", apperrors.UserMessage(err))
		if stdErr.Retryable {
			fmt.Fprintln(os.Stderr, "This is usually temporary. Run the command again to retry.")
		}
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}

func printRecovery(r apperrors.Recovery) {
	fmt.Fprintln(os.Stderr, r.Message)
	fmt.Fprintln(os.Stderr, "  ssa status      reload the saved draft")
	fmt.Fprintln(os.Stderr, "  ssa goto 0      go back to the first step")
	if r.SuggestClearCache {
		fmt.Fprintln(os.Stderr, "  ssa reset --all clear local data if the problem persists")
	}
}

func printStep(a *app.App) error {
	s := a.Form.State()
	if jsonOutput() {
		return printJSON(map[string]interface{}{"currentStep": s.CurrentStep, "step": s.StepKey()})
	}
	fmt.Printf("Step %d of %d: %s\n", s.CurrentStep+1, form.StepCount, s.StepKey())
	return nil
}

func printStatus(a *app.App) error {
	s := a.Form.State()
	results := a.Validator.ValidateAll(s.Draft)
	if jsonOutput() {
		return printJSON(map[string]interface{}{
			"currentStep": s.CurrentStep,
			"formData":    s.Draft,
			"validation":  results,
		})
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"", "Step", "Field", "Value", "Error"})
	for _, step := range form.Steps() {
		marker := ""
		if step.Index() == s.CurrentStep {
			marker = ">"
		}
		values := sliceValues(s.Draft, step)
		for _, field := range form.Fields(step) {
			tw.AppendRow(table.Row{marker, step, field, truncate(values[field], 48), results[step].FieldErrors[field]})
			marker = ""
		}
		tw.AppendSeparator()
	}
	tw.Render()

	saved := "never"
	if s.Draft.Meta.LastSavedAt != nil {
		saved = s.Draft.Meta.LastSavedAt.Local().Format("2006-01-02 15:04:05")
	}
	fmt.Printf("Step %d of %d, last saved %s, language %s\n",
		s.CurrentStep+1, form.StepCount, saved, s.Draft.Language().DisplayName())
	return nil
}

func printValidation(step form.StepKey, res validation.Result) error {
	if jsonOutput() {
		return printJSON(map[string]interface{}{"step": step, "result": res})
	}
	if res.IsValid {
		fmt.Printf("Step %s is complete.\n", step)
		return nil
	}
	fields := make([]string, 0, len(res.FieldErrors))
	for f := range res.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Field", "Problem"})
	for _, f := range fields {
		tw.AppendRow(table.Row{f, res.FieldErrors[f]})
	}
	fmt.Printf("Step %s has %d problem(s):\n", step, len(fields))
	tw.Render()
	return nil
}

func printOptions(opts []form.Option) error {
	if jsonOutput() {
		return printJSON(opts)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Value", "Label"})
	for _, o := range opts {
		tw.AppendRow(table.Row{o.Value, o.Label})
	}
	tw.Render()
	return nil
}

// sliceValues renders one step slice as field -> text.
func sliceValues(d form.ApplicationDraft, step form.StepKey) map[string]string {
	var slice interface{}
	switch step {
	case form.StepPersonal:
		slice = d.Personal
	case form.StepFamily:
		slice = d.Family
	default:
		slice = d.Situation
	}
	data, _ := json.Marshal(slice)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	_ = dec.Decode(&raw)

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v != nil {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
