package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"social-support/internal/app"
	"social-support/internal/assistant"
	"social-support/internal/form"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show progress, answers and validation per step",
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			return printStatus(a)
		}),
	}
}

func setCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set [step] [field=value ...]",
		Short: "Update answers of one step, or of several steps from a YAML file",
		Example: `  ssa set personal name="Jane Doe" dob=1990-04-12
  ssa set family dependents=2 monthlyIncome=1200
  ssa set --file applicant.yaml`,
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			if file != "" {
				return setFromFile(a, file)
			}
			if len(args) < 1 {
				return fmt.Errorf("step required (personal, family, situation)")
			}
			step, err := parseStep(args[0])
			if err != nil {
				return err
			}
			values := make(map[string]interface{}, len(args)-1)
			for _, kv := range args[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("expected field=value, got %q", kv)
				}
				values[k] = v
			}
			if err := a.Form.UpdateStep(step, values); err != nil {
				return err
			}
			return printValidation(step, a.Form.Validate(step.Index()))
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with personal/family/situation sections")
	return cmd
}

// applicantFile is the layout of a `set --file` document. Answers are kept as
// nodes so unquoted numbers and dates reach the form as typed.
type applicantFile map[string]map[string]yaml.Node

func setFromFile(a *app.App, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sections, err := parseApplicantFile(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, step := range form.Steps() {
		values, ok := sections[step]
		if !ok {
			continue
		}
		if err := a.Form.UpdateStep(step, values); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
	}
	return printStatus(a)
}

// parseApplicantFile turns each section into patch values using the scalar
// text, so `phone: 0501234567` stays "0501234567".
func parseApplicantFile(data []byte) (map[form.StepKey]map[string]interface{}, error) {
	var doc applicantFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	out := make(map[form.StepKey]map[string]interface{}, len(doc))
	for section, fields := range doc {
		step := form.StepKey(section)
		if step.Index() < 0 {
			return nil, fmt.Errorf("unknown section %q", section)
		}
		values := make(map[string]interface{}, len(fields))
		for name, node := range fields {
			if node.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%s.%s: expected a single value", section, name)
			}
			if node.ShortTag() == "!!null" {
				values[name] = ""
				continue
			}
			values[name] = node.Value
		}
		out[step] = values
	}
	return out, nil
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [step]",
		Short: "Validate the current step, or the given one",
		Args:  cobra.MaximumNArgs(1),
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			step := a.Form.State().StepKey()
			if len(args) == 1 {
				var err error
				if step, err = parseStep(args[0]); err != nil {
					return err
				}
			}
			return printValidation(step, a.Form.Validate(step.Index()))
		}),
	}
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Move to the next step if the current one is valid",
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			from := a.Form.State().StepKey()
			res, moved := a.Form.GoNext()
			if !res.IsValid {
				return printValidation(from, res)
			}
			if !moved {
				fmt.Println("Already on the last step. Run \"ssa submit\" to send the application.")
				return nil
			}
			return printStep(a)
		}),
	}
}

func prevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prev",
		Short: "Go back one step",
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			a.Form.GoPrevious()
			return printStep(a)
		}),
	}
}

func gotoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goto <step>",
		Short: "Jump back to a step already reached",
		Args:  cobra.ExactArgs(1),
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			step, err := parseStep(args[0])
			if err != nil {
				return err
			}
			if !a.Form.JumpTo(step.Index()) && a.Form.State().CurrentStep != step.Index() {
				return fmt.Errorf("step %s not reached yet; complete the current step first", step)
			}
			return printStep(a)
		}),
	}
}

func assistCmd() *cobra.Command {
	var (
		opts   assistant.Options
		tone   string
		length string
		accept bool
		edit   string
	)
	cmd := &cobra.Command{
		Use:   "assist <field>",
		Short: "Draft a situation answer with the AI assistant",
		Long: `Drafts one of financialSituation, employmentCircumstances or
reasonForApplying from your other answers. The field must already hold a
started answer. The draft is only shown unless --accept is given.`,
		Args: cobra.ExactArgs(1),
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			field := args[0]
			opts.Tone = assistant.Tone(tone)
			opts.Length = assistant.Length(length)

			ctx := cmd.Context()
			if err := a.Assistant.Open(ctx, field, a.Form.State().Draft, opts); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Generating...")
			if err := a.Assistant.Wait(ctx); err != nil {
				a.Assistant.Close()
				return err
			}

			s := a.Assistant.Snapshot()
			if s.Status == assistant.StatusError {
				a.Assistant.Close()
				return fmt.Errorf("%s", s.ErrorMessage)
			}
			fmt.Println(s.GeneratedText)

			if edit != "" {
				if err := a.Assistant.Edit(edit); err != nil {
					return err
				}
			}
			if !accept {
				a.Assistant.Close()
				return nil
			}
			res, err := a.Assistant.Accept()
			if err != nil {
				return err
			}
			fmt.Printf("\nSaved to %s.\n", field)
			return printValidation(form.StepSituation, res)
		}),
	}
	cmd.Flags().StringVar(&opts.UserPrompt, "prompt", "", "extra details for the assistant")
	cmd.Flags().StringVar(&tone, "tone", string(assistant.ToneProfessional), "professional, empathetic or formal")
	cmd.Flags().StringVar(&length, "length", string(assistant.LengthMedium), "short, medium or long")
	cmd.Flags().BoolVar(&opts.NoRetry, "no-retry", false, "fail on the first error")
	cmd.Flags().BoolVar(&accept, "accept", false, "write the draft into the form")
	cmd.Flags().StringVar(&edit, "edit", "", "accept this text instead of the generated one")
	return cmd
}

func submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Send the completed application",
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			for _, step := range form.Steps() {
				if res := a.Form.Validate(step.Index()); !res.IsValid {
					_ = printValidation(step, res)
					return fmt.Errorf("complete step %s before submitting", step)
				}
			}
			fmt.Fprintln(os.Stderr, "Submitting...")
			id, err := a.Submission.Submit(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(map[string]string{"applicationId": id})
			}
			fmt.Printf("Application submitted. Reference: %s\n", id)
			return nil
		}),
	}
}

func resetCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the draft and start over",
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			if all {
				a.ClearLocalData()
				fmt.Println("All local data cleared.")
				return nil
			}
			a.Form.ResetAll()
			fmt.Println("Draft discarded.")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "also clear every other locally stored value")
	return cmd
}

func optionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "options <field>",
		Short:       "List allowed values for a choice field",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"offline": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, ok := form.OptionsFor(args[0])
			if !ok {
				return fmt.Errorf("%s is not a choice field", args[0])
			}
			return printOptions(opts)
		},
	}
}

func languageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "language <en|ar>",
		Short: "Set the language used for AI drafts",
		Args:  cobra.ExactArgs(1),
		RunE: guarded(func(cmd *cobra.Command, args []string, a *app.App) error {
			lang, ok := form.ParseLanguage(args[0])
			if !ok {
				return fmt.Errorf("unsupported language %q", args[0])
			}
			a.Form.SetLanguage(lang)
			fmt.Printf("Language set to %s.\n", lang.DisplayName())
			return nil
		}),
	}
}

// parseStep accepts a step name or its index.
func parseStep(s string) (form.StepKey, error) {
	if i, err := strconv.Atoi(s); err == nil {
		if step, ok := form.StepAt(i); ok {
			return step, nil
		}
		return "", fmt.Errorf("step index %d out of range", i)
	}
	for _, step := range form.Steps() {
		if strings.EqualFold(string(step), s) {
			return step, nil
		}
	}
	return "", fmt.Errorf("unknown step %q", s)
}
