package usecase

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

const (
	dispatchBatchSize = 100

	// após maxSendAttempts falhas SMTP seguidas a inscrição é encerrada
	maxSendAttempts = 5
	retryBaseDelay  = 15 * time.Minute

	ExitReasonTemplateError = "template_error"
	ExitReasonSendFailed    = "send_failed"
	ExitReasonNoEmail       = "no_email"
)

// DispatchSequenceStepsUseCase envia o passo vencido de cada inscrição ativa
// e avança para o próximo (ou conclui).
type DispatchSequenceStepsUseCase struct {
	Sequences   SequenceRepositoryInterface
	Enrollments EnrollmentRepositoryInterface
	SentEmails  SentEmailRepositoryInterface
	Mailer      SequenceMailer
	Now         func() time.Time
}

func NewDispatchSequenceStepsUseCase(
	sequences SequenceRepositoryInterface,
	enrollments EnrollmentRepositoryInterface,
	sent SentEmailRepositoryInterface,
	mailer SequenceMailer,
) *DispatchSequenceStepsUseCase {
	return &DispatchSequenceStepsUseCase{
		Sequences:   sequences,
		Enrollments: enrollments,
		SentEmails:  sent,
		Mailer:      mailer,
		Now:         time.Now,
	}
}

type stepTemplateData struct {
	Name  string
	Email string
	Stage string
	Data  map[string]any
}

func (uc *DispatchSequenceStepsUseCase) Execute(ctx context.Context) (int, error) {
	now := uc.Now()
	due, err := uc.Enrollments.ListDue(ctx, now, dispatchBatchSize)
	if err != nil {
		return 0, NewTechnicalError("DB_ERROR", "failed to list due enrollments", err)
	}

	stepsBySequence := map[string][]entity.SequenceStep{}
	sent := 0
	for _, d := range due {
		e := d.Enrollment
		steps, ok := stepsBySequence[e.SequenceID]
		if !ok {
			steps, err = uc.Sequences.ListSteps(ctx, e.SequenceID)
			if err != nil {
				logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.Execute", "falha ao carregar passos", e.SequenceID, err)
				continue
			}
			stepsBySequence[e.SequenceID] = steps
		}

		if e.CurrentStep >= len(steps) {
			uc.complete(ctx, &e, now)
			continue
		}
		step := steps[e.CurrentStep]

		if d.Record.Email == "" {
			uc.exit(ctx, &e, now, ExitReasonNoEmail)
			continue
		}

		subject, body, err := renderStep(step, d.Record)
		if err != nil {
			// template quebrado nunca vai renderizar; sem isso a linha fica vencida para sempre
			logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.Execute", "template inválido", step.ID, err)
			uc.exit(ctx, &e, now, ExitReasonTemplateError+": "+err.Error())
			continue
		}

		record := &entity.SentEmail{
			ID:             uuid.New().String(),
			OrganizationID: e.OrganizationID,
			EnrollmentID:   e.ID,
			StepID:         step.ID,
			RecordID:       e.RecordID,
			ToEmail:        d.Record.Email,
			Subject:        subject,
			SentAt:         now,
		}
		if err := uc.Mailer.SendSequenceStep(ctx, d.Record.Email, subject, body); err != nil {
			record.Error = err.Error()
			logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.Execute", "falha no envio SMTP", e.ID, err)
			if saveErr := uc.SentEmails.Create(ctx, record); saveErr != nil {
				logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.Execute", "falha ao registrar envio", e.ID, saveErr)
			}
			uc.retryLater(ctx, &e, now)
			continue
		}
		if err := uc.SentEmails.Create(ctx, record); err != nil {
			logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.Execute", "falha ao registrar envio", e.ID, err)
		}
		sent++

		e.CurrentStep++
		e.FailedAttempts = 0
		e.UpdatedAt = now
		if e.CurrentStep >= len(steps) {
			uc.complete(ctx, &e, now)
			continue
		}
		next := now.Add(steps[e.CurrentStep].Delay())
		e.NextSendAt = &next
		if err := uc.Enrollments.Advance(ctx, &e); err != nil {
			logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.Execute", "falha ao avançar inscrição", e.ID, err)
		}
	}

	return sent, nil
}

func (uc *DispatchSequenceStepsUseCase) complete(ctx context.Context, e *entity.Enrollment, now time.Time) {
	e.Status = entity.EnrollmentCompleted
	e.CompletedAt = &now
	e.NextSendAt = nil
	e.UpdatedAt = now
	if err := uc.Enrollments.Advance(ctx, e); err != nil {
		logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.complete", "falha ao concluir inscrição", e.ID, err)
	}
}

func (uc *DispatchSequenceStepsUseCase) exit(ctx context.Context, e *entity.Enrollment, now time.Time, reason string) {
	e.Status = entity.EnrollmentExited
	e.ExitedAt = &now
	e.ExitReason = reason
	e.NextSendAt = nil
	e.UpdatedAt = now
	if err := uc.Enrollments.Advance(ctx, e); err != nil {
		logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.exit", "falha ao encerrar inscrição", e.ID, err)
	}
}

// retryLater adia o mesmo passo com backoff exponencial e desiste em maxSendAttempts.
func (uc *DispatchSequenceStepsUseCase) retryLater(ctx context.Context, e *entity.Enrollment, now time.Time) {
	e.FailedAttempts++
	if e.FailedAttempts >= maxSendAttempts {
		uc.exit(ctx, e, now, ExitReasonSendFailed)
		return
	}
	next := now.Add(retryDelay(e.FailedAttempts))
	e.NextSendAt = &next
	e.UpdatedAt = now
	if err := uc.Enrollments.Advance(ctx, e); err != nil {
		logger.LogError(logger.Get(), "usecase", "DispatchSequenceStepsUseCase.retryLater", "falha ao reagendar inscrição", e.ID, err)
	}
}

// 15min, 30min, 1h, 2h...
func retryDelay(attempt int) time.Duration {
	return retryBaseDelay << (attempt - 1)
}

func renderStep(step entity.SequenceStep, rec entity.Record) (string, string, error) {
	data := stepTemplateData{Name: rec.Name, Email: rec.Email, Stage: rec.Stage, Data: rec.Data}

	subject, err := renderSubject(step.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := renderBody(step.Body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

// O assunto vai num header, não em HTML: escapar "&" ou "'" aqui estraga o texto.
func renderSubject(text string, data stepTemplateData) (string, error) {
	t, err := template.New("subject").Parse(text)
	if err != nil {
		return "", fmt.Errorf("erro ao ler template subject: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("erro ao processar template subject: %w", err)
	}
	return buf.String(), nil
}

func renderBody(text string, data stepTemplateData) (string, error) {
	t, err := htmltemplate.New("body").Parse(text)
	if err != nil {
		return "", fmt.Errorf("erro ao ler template body: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("erro ao processar template body: %w", err)
	}
	return buf.String(), nil
}
