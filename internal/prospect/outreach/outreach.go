// Package outreach drafts the first email to a resolved decision-maker. Drafts
// come from the xAI chat API when a key is configured and from a fixed
// template otherwise.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
)

const (
	GeneratorGrok             = "grok"
	GeneratorTemplate         = "template"
	GeneratorTemplateFallback = "template_fallback"
)

var ErrNoRecipient = errors.New("NO_RECIPIENT")

// Sender identifies who the outreach is from and what is being offered.
type Sender struct {
	Name    string
	Email   string
	Product string
}

// Request is everything the draft may refer to.
type Request struct {
	Prospect   models.Prospect
	Enrichment models.EnrichmentResult
	Tier       string
}

// Recipient is the validated email, falling back to the one on file.
func (r Request) Recipient() string {
	if r.Enrichment.ValidatedEmail != nil && *r.Enrichment.ValidatedEmail != "" {
		return *r.Enrichment.ValidatedEmail
	}
	return r.Prospect.Email
}

func (r Request) contactName() string {
	if r.Enrichment.ContactName != "" {
		return r.Enrichment.ContactName
	}
	return r.Prospect.ContactName
}

func (r Request) contactRole() string {
	if r.Enrichment.ContactRole != "" {
		return r.Enrichment.ContactRole
	}
	return r.Prospect.ContactRole
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Generator struct {
	llm    Completer
	sender Sender
	logger logger.Logger
}

// NewGenerator returns a Generator. A nil llm means every draft uses the template.
func NewGenerator(llm Completer, sender Sender, log logger.Logger) *Generator {
	return &Generator{
		llm:    llm,
		sender: sender,
		logger: log.WithFields(map[string]interface{}{"component": "outreach-generator"}),
	}
}

// Generate drafts a message for req. LLM failures fall back to the template;
// only a request without any recipient address is an error.
func (g *Generator) Generate(ctx context.Context, req Request) (models.OutreachMessage, error) {
	to := req.Recipient()
	if to == "" {
		return models.OutreachMessage{}, fmt.Errorf("%w: prospect %s has no email", ErrNoRecipient, req.Prospect.ID)
	}

	if g.llm == nil {
		return g.template(req, to, GeneratorTemplate), nil
	}

	text, err := g.llm.Complete(ctx, systemPrompt(g.sender), userPrompt(req, g.sender))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.OutreachMessage{}, ctxErr
		}
		g.logger.Warn("llm draft failed, using template", map[string]interface{}{
			"prospectId": req.Prospect.ID,
			"error":      err.Error(),
		})
		return g.template(req, to, GeneratorTemplateFallback), nil
	}

	subject, body := splitDraft(text)
	if subject == "" || body == "" {
		g.logger.Warn("llm draft unusable, using template", map[string]interface{}{"prospectId": req.Prospect.ID})
		return g.template(req, to, GeneratorTemplateFallback), nil
	}
	return models.OutreachMessage{
		ProspectID: req.Prospect.ID,
		To:         to,
		Subject:    subject,
		Body:       body,
		Generator:  GeneratorGrok,
	}, nil
}

func (g *Generator) template(req Request, to, generator string) models.OutreachMessage {
	subject, body := Template(req, g.sender)
	return models.OutreachMessage{
		ProspectID: req.Prospect.ID,
		To:         to,
		Subject:    subject,
		Body:       body,
		Generator:  generator,
	}
}

// Template renders the deterministic draft.
func Template(req Request, sender Sender) (subject, body string) {
	p := req.Prospect
	subject = fmt.Sprintf("%s for %s", productOr(sender.Product), p.PropertyName)

	greeting := "Hello,"
	if fields := strings.Fields(req.contactName()); len(fields) > 0 {
		greeting = fmt.Sprintf("Dear %s,", fields[0])
	}

	var b strings.Builder
	b.WriteString(greeting)
	b.WriteString("\n\n")
	where := p.PropertyName
	if p.City != "" {
		where += " in " + p.City
	}
	fmt.Fprintf(&b, "I came across %s and wanted to reach out", where)
	if role := req.contactRole(); role != "" {
		fmt.Fprintf(&b, " to you as %s", role)
	}
	b.WriteString(".\n\n")
	fmt.Fprintf(&b, "%s helps independent and boutique hotels fill more rooms directly. ", productOr(sender.Product))
	b.WriteString("Would you be open to a short call next week to see whether it fits your property?\n\n")
	b.WriteString("Best regards,\n")
	b.WriteString(strings.TrimSpace(sender.Name))
	if sender.Email != "" {
		b.WriteString("\n")
		b.WriteString(sender.Email)
	}
	return subject, b.String()
}

func productOr(product string) string {
	if strings.TrimSpace(product) == "" {
		return "Our platform"
	}
	return product
}

func systemPrompt(sender Sender) string {
	return fmt.Sprintf("You write short, friendly B2B cold emails for %s on behalf of %s. "+
		"Reply with the first line as 'Subject: ...', then a blank line, then a plain-text body under 120 words. "+
		"Do not invent facts about the hotel.", productOr(sender.Product), strings.TrimSpace(sender.Name))
}

func userPrompt(req Request, sender Sender) string {
	p := req.Prospect
	lines := []string{fmt.Sprintf("Hotel: %s", p.PropertyName)}
	if p.City != "" {
		lines = append(lines, "City: "+p.City)
	}
	if name := req.contactName(); name != "" {
		lines = append(lines, "Recipient: "+name)
	}
	if role := req.contactRole(); role != "" {
		lines = append(lines, "Role: "+role)
	}
	if p.StarRating > 0 {
		lines = append(lines, fmt.Sprintf("Stars: %d", p.StarRating))
	}
	if p.ChainBrand != "" {
		lines = append(lines, "Brand: "+p.ChainBrand)
	}
	if p.JobTitle != "" {
		lines = append(lines, "Currently hiring: "+p.JobTitle)
	}
	if req.Tier != "" {
		lines = append(lines, "Lead tier: "+req.Tier)
	}
	lines = append(lines, "Sign as: "+strings.TrimSpace(sender.Name))
	return strings.Join(lines, "\n")
}

// splitDraft separates a "Subject: ..." first line from the body.
func splitDraft(text string) (subject, body string) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(first)
	lower := strings.ToLower(first)
	if !strings.HasPrefix(lower, "subject:") {
		return "", ""
	}
	subject = strings.TrimSpace(first[len("subject:"):])
	body = strings.TrimSpace(rest)
	return subject, body
}
