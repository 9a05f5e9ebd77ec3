// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/dedup"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var channelTracer = otel.Tracer("docchat.channel")

// Acknowledgement messages returned to the webhook caller.
const (
	AckDuplicate = "Duplicate message ignored"
	AckEmpty     = "Empty message ignored"
	AckAccepted  = "Question accepted"
	AckWelcome   = "Welcome message sent"
	AckReceived  = "Webhook received"
)

// TerminalApology is sent when the pipeline fails for a channel user.
const TerminalApology = "Xin lỗi, đã xảy ra lỗi khi xử lý câu hỏi của bạn. / Sorry, there was an error processing your question."

// Answerer runs the answer pipeline.
type Answerer interface {
	Answer(ctx context.Context, sessionID, question string) (*pipeline.Result, error)
}

// Job is one accepted question waiting to be processed.
type Job struct {
	MessageID  string    `json:"message_id"`
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Dispatcher hands accepted jobs to whatever runs Adapter.Process.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// AcceptResult describes what Accept did with an event.
type AcceptResult struct {
	Outcome string
	Message string
}

// Adapter is the inbound channel adapter.
type Adapter struct {
	guard      dedup.Guard
	answerer   Answerer
	sender     Sender
	dispatcher Dispatcher
	welcome    string
	metrics    *observability.Metrics
}

// AdapterConfig holds the collaborators of an Adapter. Dispatcher may be
// set later with SetDispatcher; Metrics may be nil.
type AdapterConfig struct {
	Guard          dedup.Guard
	Answerer       Answerer
	Sender         Sender
	Dispatcher     Dispatcher
	WelcomeMessage string
	Metrics        *observability.Metrics
}

func NewAdapter(cfg AdapterConfig) *Adapter {
	return &Adapter{
		guard:      cfg.Guard,
		answerer:   cfg.Answerer,
		sender:     cfg.Sender,
		dispatcher: cfg.Dispatcher,
		welcome:    cfg.WelcomeMessage,
		metrics:    cfg.Metrics,
	}
}

// SetDispatcher replaces the dispatcher. Must be called before serving.
func (a *Adapter) SetDispatcher(d Dispatcher) {
	a.dispatcher = d
}

// Sender returns the delivery client.
func (a *Adapter) Sender() Sender {
	return a.sender
}

// Accept handles one inbound webhook event.
//
// # Description
//
// For user_send_text: the sender identity is required; blank text is
// acknowledged and dropped; the message ID is atomically checked and marked
// in the guard, then the job is dispatched. Events without a message ID
// skip deduplication. For follow: the welcome message is sent. Anything
// else is acknowledged with no side effect.
//
// The guard entry is marked before dispatch, so a dispatch failure loses
// the message rather than processing it twice.
//
// # Outputs
//
//   - AcceptResult: Outcome label and the acknowledgement message.
//   - error: ErrMissingSender (caller error), or a guard/dispatch failure.
func (a *Adapter) Accept(ctx context.Context, event *datatypes.WebhookEvent) (AcceptResult, error) {
	ctx, span := channelTracer.Start(ctx, "Adapter.Accept")
	defer span.End()
	span.SetAttributes(attribute.String("event.name", event.EventName))

	switch event.EventName {
	case datatypes.EventUserSendText:
		result, err := a.acceptText(ctx, event)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		a.metrics.RecordInbound(event.EventName, result.Outcome)
		return result, err

	case datatypes.EventFollow:
		result := a.welcomeFollower(ctx, event)
		a.metrics.RecordInbound(event.EventName, result.Outcome)
		return result, nil

	default:
		slog.Debug("Unhandled webhook event", "event_name", event.EventName)
		a.metrics.RecordInbound(event.EventName, observability.OutcomeIgnored)
		return AcceptResult{Outcome: observability.OutcomeIgnored, Message: AckReceived}, nil
	}
}

func (a *Adapter) acceptText(ctx context.Context, event *datatypes.WebhookEvent) (AcceptResult, error) {
	userID := event.SenderIdentity()
	if userID == "" {
		return AcceptResult{Outcome: observability.OutcomeRejected}, ErrMissingSender
	}
	text := strings.TrimSpace(event.Message.Text)
	if text == "" {
		return AcceptResult{Outcome: observability.OutcomeIgnored, Message: AckEmpty}, nil
	}

	msgID := event.Message.MsgID
	if msgID != "" {
		fresh, err := a.guard.TryMark(ctx, msgID)
		if err != nil && !fresh {
			return AcceptResult{Outcome: observability.OutcomeFailed}, fmt.Errorf("dedup guard: %w", err)
		}
		if err != nil {
			// The id is recorded, so a retry would be dropped. Process now.
			slog.Warn("Dedup guard reported an error after marking", "msg_id", msgID, "error", err)
		}
		if !fresh {
			slog.Warn("Duplicate inbound message dropped", "msg_id", msgID, "user_id", userID)
			return AcceptResult{Outcome: observability.OutcomeDuplicate, Message: AckDuplicate}, nil
		}
	}

	job := Job{MessageID: msgID, UserID: userID, Text: text, ReceivedAt: time.Now().UTC()}
	if a.dispatcher == nil {
		return AcceptResult{Outcome: observability.OutcomeFailed}, errors.New("no dispatcher configured")
	}
	if err := a.dispatcher.Dispatch(ctx, job); err != nil {
		slog.Error("Failed to dispatch inbound question", "msg_id", msgID, "user_id", userID, "error", err)
		return AcceptResult{Outcome: observability.OutcomeFailed}, fmt.Errorf("dispatch: %w", err)
	}
	slog.Info("Accepted inbound question", "msg_id", msgID, "user_id", userID)
	return AcceptResult{Outcome: observability.OutcomeAccepted, Message: AckAccepted}, nil
}

func (a *Adapter) welcomeFollower(ctx context.Context, event *datatypes.WebhookEvent) AcceptResult {
	userID := event.FollowerIdentity()
	if userID != "" && a.welcome != "" {
		if err := a.sender.Send(ctx, userID, a.welcome); err != nil {
			slog.Error("Failed to send welcome message", "user_id", userID, "error", err)
		}
	}
	return AcceptResult{Outcome: observability.OutcomeAccepted, Message: AckWelcome}
}

// Process answers one job and delivers the result.
//
// # Description
//
// A terminal pipeline failure is reported to the user with
// TerminalApology. Delivery is attempted once.
//
// # Outputs
//
//   - error: The pipeline and/or delivery failure, for logging. The job
//     must not be retried on error.
func (a *Adapter) Process(ctx context.Context, job Job) error {
	ctx, span := channelTracer.Start(ctx, "Adapter.Process")
	defer span.End()

	answer := TerminalApology
	result, pipeErr := a.answerer.Answer(ctx, job.UserID, job.Text)
	if pipeErr != nil {
		span.RecordError(pipeErr)
		slog.Error("Pipeline failed for channel user", "user_id", job.UserID, "msg_id", job.MessageID, "error", pipeErr)
	} else {
		answer = result.Answer
	}

	// The request context may already be gone for synchronous dispatch, but
	// the answer still has to go out.
	sendCtx := context.WithoutCancel(ctx)
	sendErr := a.sender.Send(sendCtx, job.UserID, answer)
	if sendErr != nil {
		span.RecordError(sendErr)
		slog.Error("Failed to deliver answer", "user_id", job.UserID, "msg_id", job.MessageID, "error", sendErr)
	}

	if err := errors.Join(pipeErr, sendErr); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.Info("Answered channel user",
		"user_id", job.UserID,
		"msg_id", job.MessageID,
		"elapsed", time.Since(job.ReceivedAt).String())
	return nil
}

// DirectDispatcher runs Process in a goroutine per job, without a
// queue. Used for tests and single-process setups without a bus.
type DirectDispatcher struct {
	Adapter *Adapter

	// Wait makes Dispatch block until Process returns.
	Wait bool
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, job Job) error {
	if d.Wait {
		_ = d.Adapter.Process(ctx, job)
		return nil
	}
	go func() {
		_ = d.Adapter.Process(context.WithoutCancel(ctx), job)
	}()
	return nil
}

var _ Dispatcher = (*DirectDispatcher)(nil)
