// email.go — отправка готового артефакта письмом.
//
// Доступ к артефакту проверяется теми же правилами, что и при
// скачивании: пара job_id + token, срок не истёк. Файл читается из
// локального хранилища и прикладывается к письму — повторная выгрузка
// по ссылке не выполняется.
package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/wneessen/go-mail"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/domain/model"
	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/contacts"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
)

// Prometheus метрики отправки писем
var (
	emailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_emails_sent_total",
		Help: "Количество писем по результату отправки",
	}, []string{"result"})
)

// EmailRequest — запрос на отправку артефакта письмом.
type EmailRequest struct {
	// JobID и Token — ссылка на артефакт
	JobID string `json:"job_id"`
	Token string `json:"token"`

	// To — адрес получателя
	To string `json:"to"`
	// FromName — имя отправителя для подписи письма
	FromName string `json:"from_name"`
	// FromEmail — Reply-To отправителя
	FromEmail string `json:"from_email"`
	// Message — сопроводительный текст (опционально)
	Message string `json:"message,omitempty"`

	// Согласия на рассылки (опционально)
	ConsentNews    bool `json:"consent_news,omitempty"`
	ConsentProduct bool `json:"consent_product,omitempty"`
}

// Mailer — клиент отправки писем. Выделен в интерфейс для тестов.
type Mailer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailService — сервис отправки артефактов письмом.
type EmailService struct {
	outputs  *artifact.Store
	idx      *jobindex.Index
	contacts *contacts.Store
	client   Mailer
	from     string
	siteName string
	logger   *slog.Logger
	now      func() time.Time
}

// NewEmailService создаёт сервис отправки писем.
// client == nil означает, что SMTP не настроен: Send вернёт 503.
func NewEmailService(
	outputs *artifact.Store,
	idx *jobindex.Index,
	contactsStore *contacts.Store,
	client Mailer,
	from string,
	siteName string,
	logger *slog.Logger,
) *EmailService {
	return &EmailService{
		outputs:  outputs,
		idx:      idx,
		contacts: contactsStore,
		client:   client,
		from:     from,
		siteName: siteName,
		logger:   logger.With(slog.String("component", "email_service")),
		now:      time.Now,
	}
}

// NewSMTPClient создаёт клиент go-mail с PLAIN-аутентификацией.
func NewSMTPClient(host string, port int, user, pass string) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(30 * time.Second),
	}
	if user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(user),
			mail.WithPassword(pass),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания smtp-клиента: %w", err)
	}
	return client, nil
}

// Send отправляет артефакт задания на указанный адрес.
func (s *EmailService) Send(ctx context.Context, req EmailRequest) *ServiceError {
	if s.client == nil {
		return &ServiceError{
			StatusCode: http.StatusServiceUnavailable,
			Code:       apierrors.CodeInternalError,
			Message:    "Email sending is not configured",
		}
	}

	if req.To == "" || req.FromEmail == "" {
		return &ServiceError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeInvalidRequest,
			Message:    "Fields 'to' and 'from_email' are required",
		}
	}

	now := s.now().UTC()
	rec, serr := resolveJob(s.idx, req.JobID, req.Token, func(r *model.JobRecord) bool {
		return r.IsExpired(now)
	})
	if serr != nil {
		return serr
	}

	file, err := s.outputs.Open(rec.OutputPath)
	if err != nil {
		s.logger.Error("Артефакт для письма недоступен",
			slog.String("job_id", req.JobID),
			slog.String("error", err.Error()),
		)
		return &ServiceError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    "Job not found",
		}
	}
	defer file.Close()

	msg, err := s.buildMessage(req, rec)
	if err != nil {
		s.logger.Error("Ошибка сборки письма",
			slog.String("job_id", req.JobID),
			slog.String("error", err.Error()),
		)
		emailsSentTotal.WithLabelValues("error").Inc()
		return &ServiceError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeInvalidRequest,
			Message:    "Invalid email address",
		}
	}

	if err := msg.AttachReader(rec.OutputFilename, file); err != nil {
		s.logger.Error("Ошибка вложения артефакта",
			slog.String("job_id", req.JobID),
			slog.String("error", err.Error()),
		)
		emailsSentTotal.WithLabelValues("error").Inc()
		return &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to attach file",
		}
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("Ошибка отправки письма",
			slog.String("job_id", req.JobID),
			slog.String("error", err.Error()),
		)
		emailsSentTotal.WithLabelValues("error").Inc()
		return &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to send email",
		}
	}

	// Согласие на рассылку сохраняется best-effort: сбой записи
	// контакта не отменяет уже отправленное письмо
	if req.ConsentNews || req.ConsentProduct {
		if err := s.contacts.Append(contacts.Entry{
			FromName:       req.FromName,
			FromEmail:      req.FromEmail,
			ConsentNews:    req.ConsentNews,
			ConsentProduct: req.ConsentProduct,
		}); err != nil {
			s.logger.Warn("Ошибка сохранения контакта",
				slog.String("error", err.Error()),
			)
		}
	}

	emailsSentTotal.WithLabelValues("success").Inc()

	s.logger.Info("Письмо отправлено",
		slog.String("job_id", req.JobID),
		slog.String("filename", rec.OutputFilename),
	)

	return nil
}

// buildMessage собирает письмо без вложения.
func (s *EmailService) buildMessage(req EmailRequest, rec *model.JobRecord) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.FromFormat(s.siteName, s.from); err != nil {
		return nil, fmt.Errorf("некорректный адрес отправителя: %w", err)
	}
	if err := msg.To(req.To); err != nil {
		return nil, fmt.Errorf("некорректный адрес получателя: %w", err)
	}
	if err := msg.ReplyToFormat(req.FromName, req.FromEmail); err != nil {
		return nil, fmt.Errorf("некорректный reply-to: %w", err)
	}

	msg.Subject(fmt.Sprintf("%s sent you a file via %s", req.FromName, s.siteName))

	text := fmt.Sprintf("%s sent you the file %q via %s.", req.FromName, rec.OutputFilename, s.siteName)
	if req.Message != "" {
		text += "\n\n" + req.Message
	}
	msg.SetBodyString(mail.TypeTextPlain, text)

	htmlBody := fmt.Sprintf("<p>%s sent you the file <b>%s</b> via %s.</p>",
		html.EscapeString(req.FromName),
		html.EscapeString(rec.OutputFilename),
		html.EscapeString(s.siteName),
	)
	if req.Message != "" {
		htmlBody += fmt.Sprintf("<p>%s</p>", html.EscapeString(req.Message))
	}
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	return msg, nil
}
