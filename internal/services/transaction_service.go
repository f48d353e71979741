package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	dto "operator-dispatch.com/operator-dispatch/internal/data_models"
	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	"operator-dispatch.com/operator-dispatch/internal/lookup"
	model "operator-dispatch.com/operator-dispatch/internal/models"
)

// maxDocumentBytes is the upload ceiling of the chat platform.
const maxDocumentBytes = 50 << 20

// Messenger posts into deal group chats.
type Messenger interface {
	CreateTopic(ctx context.Context, chatID, name string) (int, error)
	SendText(ctx context.Context, chatID string, threadID int, html string) error
	SendDocument(ctx context.Context, chatID string, threadID int, fileName string, data []byte, caption string) error
}

type DirectoryLookup interface {
	Fetch(ctx context.Context) (*lookup.Directory, error)
}

type TransactionTopic struct {
	ChatID  string `json:"chat_id"`
	TopicID int    `json:"topic_id"`
}

type StatusResult struct {
	Status     string        `json:"status"`
	Operator   string        `json:"operator,omitempty"`
	Assignment *AssignResult `json:"assignment,omitempty"`
}

type CalculationResult struct {
	Status string `json:"status"`
	TaskID *uint  `json:"task_id,omitempty"`
}

// TransactionService is the deal-chat side of the system: it opens deal
// topics and relays status, calculation and document updates into them.
type TransactionService struct {
	scheduler  *SchedulerService
	messenger  Messenger
	directory  DirectoryLookup
	cityGroups map[string]string
	download   *http.Client
}

func NewTransactionService(
	scheduler *SchedulerService,
	messenger Messenger,
	directory DirectoryLookup,
	cityGroups map[string]string,
	downloadTimeout time.Duration,
) *TransactionService {
	return &TransactionService{
		scheduler:  scheduler,
		messenger:  messenger,
		directory:  directory,
		cityGroups: cityGroups,
		download:   &http.Client{Timeout: downloadTimeout},
	}
}

func (s *TransactionService) CreateTransaction(ctx context.Context, req *dto.TransactionCreateRequest) (*TransactionTopic, error) {
	dir, err := s.directory.Fetch(ctx)
	if err != nil {
		log.Printf("transaction: directory lookup failed: %v", err)
	}

	city := dir.CityName(req.CityID.String())
	partner := dir.PartnerName(req.BrandID.String())

	groupID, ok := s.cityGroups[city]
	if !ok {
		return nil, apperrors.ErrCityNotFound
	}

	topicID, err := s.messenger.CreateTopic(ctx, groupID, topicTitle(req))
	if err != nil {
		return nil, fmt.Errorf("create deal topic: %w", err)
	}

	if err := s.messenger.SendText(ctx, groupID, topicID, dealSummary(req, city, partner)); err != nil {
		return nil, fmt.Errorf("post deal summary: %w", err)
	}

	log.Printf("transaction: deal topic %d opened in %s (%s)", topicID, groupID, city)
	return &TransactionTopic{ChatID: groupID, TopicID: topicID}, nil
}

// UpdateStatus posts a status line to the deal topic. A calculation request
// also assigns an operator and reports who got it.
func (s *TransactionService) UpdateStatus(ctx context.Context, req *dto.StatusUpdateRequest) (*StatusResult, error) {
	result := &StatusResult{Status: "success"}

	if req.Status == statusCalcRequired {
		origin := model.Origin{ChatID: req.ChatID.String(), ThreadID: int(req.MessageThreadID)}
		assignment, err := s.scheduler.Assign(ctx, origin, req.Link)
		if err != nil {
			return nil, err
		}
		result.Assignment = assignment
		result.Operator = assignment.Display()
	}

	msg := statusMessage(req.Status, result.Assignment, req.Link)
	if err := s.messenger.SendText(ctx, req.ChatID.String(), int(req.MessageThreadID), msg); err != nil {
		return nil, fmt.Errorf("post status: %w", err)
	}
	return result, nil
}

// ReportCalculation posts the calculation to the deal topic and makes its
// total the amount the assigned operator has to prove.
func (s *TransactionService) ReportCalculation(ctx context.Context, req *dto.CalculationReportRequest) (*CalculationResult, error) {
	if err := s.messenger.SendText(ctx, req.ChatID.String(), int(req.MessageThreadID), calculationMessage(req)); err != nil {
		return nil, fmt.Errorf("post calculation: %w", err)
	}

	result := &CalculationResult{Status: "success"}
	origin := model.Origin{ChatID: req.ChatID.String(), ThreadID: int(req.MessageThreadID)}

	task, err := s.scheduler.SetExpectedAmount(ctx, origin, req.TotalToTransfer)
	switch {
	case errors.Is(err, apperrors.ErrTaskNotFound):
		log.Printf("transaction: no open task for %s/%d, expected amount not stored", origin.ChatID, origin.ThreadID)
	case err != nil:
		return nil, err
	default:
		result.TaskID = &task.ID
	}
	return result, nil
}

func (s *TransactionService) ForwardDocument(ctx context.Context, req *dto.DocumentUploadRequest) error {
	data, err := s.fetchDocument(ctx, req.FileURL)
	if err != nil {
		log.Printf("transaction: document %s: %v", req.FileURL, err)
		return apperrors.ErrDocumentUnavailable
	}

	if err := s.messenger.SendDocument(ctx, req.ChatID.String(), req.MessageThreadID, documentFileName, data, documentCaption); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

func (s *TransactionService) fetchDocument(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.download.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("document larger than %d bytes", maxDocumentBytes)
	}
	return data, nil
}
