package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"social-support/internal/common/genai"
	"social-support/internal/form"
)

type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneEmpathetic   Tone = "empathetic"
	ToneFormal       Tone = "formal"
)

type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// WordRange is the target word count for a length class.
func (l Length) WordRange() (int, int) {
	switch l {
	case LengthShort:
		return 50, 100
	case LengthLong:
		return 200, 300
	}
	return 100, 200
}

// Options tune one generation.
type Options struct {
	UserPrompt string
	Tone       Tone
	Length     Length
	// NoRetry disables retries for this request.
	NoRetry bool
}

func (o Options) withDefaults() Options {
	if o.Tone == "" {
		o.Tone = ToneProfessional
	}
	switch o.Length {
	case LengthShort, LengthMedium, LengthLong:
	default:
		o.Length = LengthMedium
	}
	o.UserPrompt = strings.TrimSpace(o.UserPrompt)
	return o
}

// fieldInstructions is the fixed guidance for each situation field.
var fieldInstructions = map[string]string{
	form.FieldFinancialSituation: "the applicant's financial situation. Focus on the financial hardships, " +
		"debts or challenges they currently face. Keep the tone empathetic and respectful.",
	form.FieldEmploymentCircumstances: "the applicant's employment circumstances. Cover job loss, reduced " +
		"working hours or inability to work. Keep the tone factual but compassionate.",
	form.FieldReasonForApplying: "the reason for applying for assistance. Describe the specific help the " +
		"applicant needs and how it will benefit them and their family. Keep the tone hopeful and positive.",
}

// Fields lists the fields the assistant can draft.
func Fields() []string {
	return form.Fields(form.StepSituation)
}

func isAssistField(field string) bool {
	_, ok := fieldInstructions[field]
	return ok
}

type promptContext struct {
	Field      string                 `json:"field"`
	Applicant  map[string]interface{} `json:"applicant"`
	Language   form.Language          `json:"language"`
	DraftText  string                 `json:"draftText,omitempty"`
	UserPrompt string                 `json:"userPrompt,omitempty"`
}

// applicantContext flattens the personal and family slices into one object.
func applicantContext(d form.ApplicationDraft) map[string]interface{} {
	out := make(map[string]interface{})
	for _, slice := range []interface{}{d.Personal, d.Family} {
		data, err := json.Marshal(slice)
		if err != nil {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		for k, v := range m {
			if v == nil || v == "" {
				continue
			}
			out[k] = v
		}
	}
	return out
}

// IrrelevantInputReply is the fixed answer the model gives when the applicant's
// input has nothing to do with the target field.
func IrrelevantInputReply(field string) string {
	return fmt.Sprintf("I'm sorry, but your input does not relate to the %s field. "+
		"Please provide relevant information for this section.", field)
}

func systemPrompt(field string, lang form.Language, opts Options) string {
	minWords, maxWords := opts.Length.WordRange()
	var b strings.Builder
	b.WriteString("You help applicants write statements for a government social support application.\n")
	b.WriteString("You receive details about the applicant (name, employment, dependents, housing, income) as JSON. ")
	b.WriteString("Use them as background only; never quote the JSON or its field names.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Write in the first person, as the applicant.\n")
	b.WriteString("- Do not add headings or labels such as \"Short response\".\n")
	b.WriteString("- Refer to the applicant by name where it reads naturally.\n")
	b.WriteString("- Stay respectful and humble, focused on genuine need and family context.\n")
	fmt.Fprintf(&b, "- Write between %d and %d words.\n", minWords, maxWords)
	fmt.Fprintf(&b, "- Write in %s.\n", lang.DisplayName())
	fmt.Fprintf(&b, "- Only write about the %q field. If the applicant's details are unrelated to it, reply exactly:\n", field)
	fmt.Fprintf(&b, "  %q\n\n", IrrelevantInputReply(field))
	fmt.Fprintf(&b, "Produce a %s, %s statement for the %q field.", opts.Tone, opts.Length, field)
	return b.String()
}

func userPrompt(field string, contextJSON string, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %q section of the application about %s\n\n", field, fieldInstructions[field])
	b.WriteString("Applicant context:\n")
	b.WriteString(contextJSON)
	b.WriteString("\n")
	if opts.UserPrompt != "" {
		b.WriteString("\nAdditional details from the applicant:\n")
		b.WriteString(opts.UserPrompt)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nTone: %s\nLength: %s", opts.Tone, opts.Length)
	return b.String()
}

// BuildRequest assembles the chat messages for one field.
func BuildRequest(field string, snapshot form.ApplicationDraft, opts Options) (genai.Request, error) {
	if !isAssistField(field) {
		return genai.Request{}, fmt.Errorf("field %q has no drafting instructions", field)
	}
	opts = opts.withDefaults()
	lang := snapshot.Language()
	draftText, _ := snapshot.Situation.Get(field)

	ctxJSON, err := json.Marshal(promptContext{
		Field:      field,
		Applicant:  applicantContext(snapshot),
		Language:   lang,
		DraftText:  strings.TrimSpace(draftText),
		UserPrompt: opts.UserPrompt,
	})
	if err != nil {
		return genai.Request{}, err
	}

	return genai.Request{Messages: []genai.Message{
		{Role: "system", Content: systemPrompt(field, lang, opts)},
		{Role: "user", Content: userPrompt(field, string(ctxJSON), opts)},
	}}, nil
}
