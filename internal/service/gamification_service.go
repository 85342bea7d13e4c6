package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
)

const (
	defaultGamificationPageSize = 10
	unknownCourseName           = "Unknown"
	cursorPrefix                = "seq:"
)

// GamificationService manages gamification questions and their aggregation per course.
type GamificationService interface {
	Paginate(ctx context.Context, query dto.GamificationPageQuery) (dto.GamificationPageResponse, error)
	Create(ctx context.Context, req dto.GamificationCreateRequest) (dto.GamificationGameResponse, error)
	ToggleStatus(ctx context.Context, id string, req dto.GamificationStatusRequest) (dto.GamificationGameResponse, error)
	Search(ctx context.Context, query dto.GamificationSearchQuery) ([]dto.GamificationGameResponse, error)
}

type gamificationService struct {
	repo      repository.GamificationRepository
	courses   repository.CourseRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

// NewGamificationService constructs the gamification aggregator.
func NewGamificationService(repo repository.GamificationRepository, courses repository.CourseRepository, validate *validator.Validate, logger zerolog.Logger) GamificationService {
	return &gamificationService{
		repo:      repo,
		courses:   courses,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "gamification_service").Logger(),
		now:       time.Now,
		tracer:    otel.Tracer("github.com/noah-isme/learnhub-api/internal/service/gamification"),
	}
}

// EncodeCursor turns an entry sequence into an opaque page token.
func EncodeCursor(seq uint) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatUint(uint64(seq), 10)))
}

// DecodeCursor reverses EncodeCursor. An empty token means the first page.
func DecodeCursor(token string) (uint, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidCursor
	}
	value, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, ErrInvalidCursor
	}
	seq, err := strconv.ParseUint(value, 10, 64)
	if err != nil || seq == 0 {
		return 0, ErrInvalidCursor
	}
	return uint(seq), nil
}

// Paginate returns one page of active entries grouped by course in order of
// first appearance. The cursor encodes a position, so entries removed between
// requests never break continuation.
func (s *gamificationService) Paginate(ctx context.Context, query dto.GamificationPageQuery) (dto.GamificationPageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "gamification.paginate")
	defer span.End()

	if err := s.validator.Struct(query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.GamificationPageResponse{}, err
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultGamificationPageSize
	}
	afterSeq, err := DecodeCursor(query.LastVisible)
	if err != nil {
		span.RecordError(err)
		return dto.GamificationPageResponse{}, err
	}
	span.SetAttributes(attribute.Int("gamification.page_size", pageSize))

	entries, err := s.repo.ListActivePage(ctx, repository.GamificationPageFilter{
		ProgramID: strings.TrimSpace(query.ProgramID),
		AfterSeq:  afterSeq,
		Limit:     pageSize + 1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list page")
		return dto.GamificationPageResponse{}, fmt.Errorf("list gamification page: %w", err)
	}

	var next *string
	if len(entries) > pageSize {
		entries = entries[:pageSize]
		cursor := EncodeCursor(entries[len(entries)-1].Seq)
		next = &cursor
	}

	groups, err := s.groupByCourse(ctx, entries)
	if err != nil {
		span.RecordError(err)
		return dto.GamificationPageResponse{}, err
	}

	return dto.GamificationPageResponse{Groups: groups, LastVisible: next}, nil
}

func (s *gamificationService) groupByCourse(ctx context.Context, entries []models.GamificationEntry) ([]dto.GamificationGroupResponse, error) {
	order := make([]string, 0)
	index := make(map[string]int)
	for _, entry := range entries {
		if _, ok := index[entry.CourseID]; !ok {
			index[entry.CourseID] = len(order)
			order = append(order, entry.CourseID)
		}
	}

	courses, err := s.courses.GetByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}

	groups := make([]dto.GamificationGroupResponse, len(order))
	for i, courseID := range order {
		name := unknownCourseName
		if course, ok := courses[courseID]; ok && course.Title != "" {
			name = course.Title
		}
		groups[i] = dto.GamificationGroupResponse{
			CourseID:   courseID,
			CourseName: name,
			Games:      make([]dto.GamificationGameResponse, 0),
		}
	}

	for _, entry := range entries {
		group := &groups[index[entry.CourseID]]
		group.Games = append(group.Games, dto.NewGamificationGameResponse(entry))
		group.TotalScore += entry.ScoreValue()
	}
	return groups, nil
}

func (s *gamificationService) Create(ctx context.Context, req dto.GamificationCreateRequest) (dto.GamificationGameResponse, error) {
	ctx, span := s.tracer.Start(ctx, "gamification.create")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.GamificationGameResponse{}, err
	}

	question := strings.TrimSpace(s.sanitizer.Sanitize(req.Question))
	if question == "" {
		return dto.GamificationGameResponse{}, fmt.Errorf("%w: question is empty after sanitising", ErrGamificationInvalid)
	}
	options := make([]string, 0, len(req.Options))
	for _, option := range req.Options {
		cleaned := strings.TrimSpace(s.sanitizer.Sanitize(option))
		if cleaned == "" {
			return dto.GamificationGameResponse{}, fmt.Errorf("%w: options must not be empty", ErrGamificationInvalid)
		}
		options = append(options, cleaned)
	}
	answer := *req.QuestionAnswerIndex
	if answer >= len(options) {
		return dto.GamificationGameResponse{}, fmt.Errorf("%w: question_answer_index must reference an option", ErrGamificationInvalid)
	}

	courseID := strings.TrimSpace(req.CourseID)
	exists, err := s.repo.ExistsByQuestion(ctx, courseID, question)
	if err != nil {
		span.RecordError(err)
		return dto.GamificationGameResponse{}, fmt.Errorf("check question: %w", err)
	}
	if exists {
		return dto.GamificationGameResponse{}, ErrGamificationExists
	}

	now := s.now().UTC()
	entry := models.GamificationEntry{
		ID:                  uuid.NewString(),
		UserID:              strings.TrimSpace(req.UserID),
		ProgramID:           strings.TrimSpace(req.ProgramID),
		CourseID:            courseID,
		SessionID:           strings.TrimSpace(req.SessionID),
		Question:            question,
		Options:             datatypes.NewJSONSlice(options),
		QuestionAnswerIndex: answer,
		Score:               strings.TrimSpace(req.Score),
		Status:              models.GamificationStatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create entry")
		return dto.GamificationGameResponse{}, fmt.Errorf("create gamification entry: %w", err)
	}

	s.logger.Info().Str("entry_id", entry.ID).Str("course_id", courseID).Msg("gamification question created")
	return dto.NewGamificationGameResponse(entry), nil
}

func (s *gamificationService) ToggleStatus(ctx context.Context, id string, req dto.GamificationStatusRequest) (dto.GamificationGameResponse, error) {
	ctx, span := s.tracer.Start(ctx, "gamification.toggle_status")
	defer span.End()

	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.GamificationGameResponse{}, err
	}

	status := models.GamificationStatusInactive
	if req.Status == dto.GamificationActionActivate {
		status = models.GamificationStatusActive
	}

	id = strings.TrimSpace(id)
	if err := s.repo.UpdateStatus(ctx, id, status, s.now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GamificationGameResponse{}, ErrGamificationNotFound
		}
		span.RecordError(err)
		return dto.GamificationGameResponse{}, fmt.Errorf("update status: %w", err)
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GamificationGameResponse{}, ErrGamificationNotFound
		}
		return dto.GamificationGameResponse{}, fmt.Errorf("reload entry: %w", err)
	}
	return dto.NewGamificationGameResponse(entry), nil
}

func (s *gamificationService) Search(ctx context.Context, query dto.GamificationSearchQuery) ([]dto.GamificationGameResponse, error) {
	ctx, span := s.tracer.Start(ctx, "gamification.search")
	defer span.End()

	if err := s.validator.Struct(query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	entries, err := s.repo.Search(ctx, repository.GamificationSearchFilter{
		QuestionPrefix: strings.TrimSpace(query.Question),
		CourseID:       strings.TrimSpace(query.CourseID),
		SessionID:      strings.TrimSpace(query.SessionID),
		Status:         query.Status,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search gamification: %w", err)
	}
	return dto.NewGamificationGameResponseSlice(entries), nil
}
