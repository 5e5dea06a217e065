package web

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/quotedesk/quotedesk/internal/document"
	"github.com/quotedesk/quotedesk/internal/email"
	"github.com/quotedesk/quotedesk/internal/extract"
	"github.com/quotedesk/quotedesk/internal/history"
	"github.com/quotedesk/quotedesk/internal/template"
)

// ReplySender sends a WhatsApp text back to the message sender.
type ReplySender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// FallbackExtractor is the AI pass tried when regex extraction fails.
type FallbackExtractor interface {
	Extract(ctx context.Context, text string) (*extract.QuoteRequest, error)
}

// Processor runs the pipeline for one inbound message: extract, render the
// quotation, email it, record the outcome, and reply on WhatsApp.
type Processor struct {
	From     string // email from address
	Store    *history.Store
	Sender   email.Sender
	Renderer document.Renderer
	Template *template.Engine
	Reply    ReplySender       // nil disables replies
	AI       FallbackExtractor // nil disables the fallback
	DryRun   bool
}

const sendTimeout = 60 * time.Second

func (p *Processor) Process(ctx context.Context, task Task) {
	msg := task.Message

	q, extractor, err := p.extract(ctx, msg.Body)
	if err != nil {
		log.Printf("task %s: extraction failed: %v", task.ID, err)
		p.record(&history.Record{
			MessageID:   msg.MessageID,
			Sender:      msg.From,
			Extractor:   history.ExtractorNone,
			Status:      history.StatusParseFailed,
			Error:       err.Error(),
			ProcessedAt: time.Now(),
		})
		if errors.Is(err, extract.ErrParseFailure) {
			p.replyFailed(ctx, msg.From, err.Error())
		}
		return
	}

	artifact, err := p.Renderer.Render(q)
	if err != nil {
		log.Printf("task %s: render failed: %v", task.ID, err)
		p.record(&history.Record{
			MessageID:   msg.MessageID,
			Sender:      msg.From,
			Quote:       *q,
			Extractor:   extractor,
			Status:      history.StatusRenderFailed,
			Error:       err.Error(),
			ProcessedAt: time.Now(),
		})
		p.replyFailed(ctx, msg.From, "could not prepare the quotation document")
		return
	}

	rec := &history.Record{
		MessageID:    msg.MessageID,
		Sender:       msg.From,
		Quote:        *q,
		Extractor:    extractor,
		ArtifactPath: artifact.Path,
		ProcessedAt:  time.Now(),
	}

	result := p.sendEmail(ctx, q, artifact)
	if result.Success {
		rec.Status = history.StatusSent
		rec.EmailID = result.MessageID
	} else {
		rec.Status = history.StatusDeliveryFailed
		if result.Error != nil {
			rec.Error = result.Error.Error()
		}
	}
	p.record(rec)

	if result.Success {
		p.replySent(ctx, msg.From, q)
		log.Printf("task %s: quotation sent to %s (%s)", task.ID, q.Email, result.MessageID)
	} else {
		p.replyFailed(ctx, msg.From, "could not deliver the quotation email")
		log.Printf("task %s: email delivery failed: %v", task.ID, result.Error)
	}
}

// extract runs the regex pass first and the AI fallback second. Only parse
// failures fall through to the AI; an AI outage surfaces as an error so the
// sender hears something went wrong rather than silence.
func (p *Processor) extract(ctx context.Context, body string) (*extract.QuoteRequest, history.Extractor, error) {
	q, err := extract.Extract(body)
	if err == nil {
		return q, history.ExtractorRegex, nil
	}
	if p.AI == nil || !errors.Is(err, extract.ErrParseFailure) {
		return nil, history.ExtractorNone, err
	}

	q, aiErr := p.AI.Extract(ctx, body)
	if aiErr != nil {
		return nil, history.ExtractorNone, aiErr
	}
	return q, history.ExtractorAI, nil
}

func (p *Processor) sendEmail(ctx context.Context, q *extract.QuoteRequest, artifact *document.Artifact) email.Result {
	rendered, err := p.Template.RenderEmail(q)
	if err != nil {
		return email.Result{Success: false, Error: err}
	}

	if p.DryRun {
		log.Printf("dry run: would email %q to %s", rendered.Subject, q.Email)
		return email.Result{Success: true, MessageID: "dry-run"}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	return p.Sender.Send(sendCtx, email.Message{
		To:      q.Email,
		From:    p.From,
		Subject: rendered.Subject,
		Body:    rendered.Body,
		Attachments: []email.Attachment{{
			Filename:    artifact.Filename,
			ContentType: "application/pdf",
			Data:        artifact.Data,
		}},
	})
}

func (p *Processor) record(rec *history.Record) {
	if p.Store == nil {
		return
	}
	if err := p.Store.Add(rec); err != nil {
		log.Printf("failed to record history for %s: %v", rec.MessageID, err)
	}
}

func (p *Processor) replySent(ctx context.Context, to string, q *extract.QuoteRequest) {
	if p.Reply == nil {
		return
	}
	body, err := p.Template.RenderSentReply(q)
	if err != nil {
		log.Printf("failed to render reply: %v", err)
		return
	}
	p.sendReply(ctx, to, body)
}

func (p *Processor) replyFailed(ctx context.Context, to, reason string) {
	if p.Reply == nil {
		return
	}
	body, err := p.Template.RenderFailedReply(reason)
	if err != nil {
		log.Printf("failed to render reply: %v", err)
		return
	}
	p.sendReply(ctx, to, body)
}

func (p *Processor) sendReply(ctx context.Context, to, body string) {
	// Messages posted directly to the webhook carry no sender to reply to.
	if to == "" {
		return
	}
	replyCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, err := p.Reply.SendText(replyCtx, to, body); err != nil {
		log.Printf("failed to send whatsapp reply to %s: %v", to, err)
	}
}
