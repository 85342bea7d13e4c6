package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/learnhub-api/internal/models"
)

func TestCertificateRepositoryCreateIfAbsent(t *testing.T) {
	db := setupTestDB(t, &models.Certificate{})
	repo := NewCertificateRepository(db)
	ctx := context.Background()

	first := models.Certificate{ID: "c1", StudentID: "S1", CourseID: "C1", CertificateURL: "https://files/1.pdf", IssueDate: time.Now(), VerificationCode: "AB12CD34E"}
	require.NoError(t, repo.CreateIfAbsent(ctx, &first))

	duplicate := models.Certificate{ID: "c2", StudentID: "S1", CourseID: "C1", CertificateURL: "https://files/2.pdf", IssueDate: time.Now(), VerificationCode: "ZZ12CD34E"}
	require.ErrorIs(t, repo.CreateIfAbsent(ctx, &duplicate), ErrConflict)

	stored, err := repo.GetByStudentAndCourse(ctx, "S1", "C1")
	require.NoError(t, err)
	require.Equal(t, "https://files/1.pdf", stored.CertificateURL)

	byCode, err := repo.GetByVerificationCode(ctx, "AB12CD34E")
	require.NoError(t, err)
	require.Equal(t, "c1", byCode.ID)

	_, err = repo.GetByVerificationCode(ctx, "ZZ12CD34E")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestCourseRepositoryPreloadsContents(t *testing.T) {
	db := setupTestDB(t, &models.Course{}, &models.CourseContent{})
	repo := NewCourseRepository(db)
	ctx := context.Background()

	course := models.Course{
		ID:    "C1",
		Title: "Go Basics",
		Contents: []models.CourseContent{
			{Kind: models.ContentKindLesson, Title: "Intro", Position: 1},
			{Kind: models.ContentKindLesson, Title: "Types", Position: 2},
			{Kind: models.ContentKindQuiz, Title: "Quiz 1", Position: 3},
		},
	}
	require.NoError(t, db.Create(&course).Error)

	loaded, err := repo.GetByID(ctx, "C1")
	require.NoError(t, err)
	require.Equal(t, 2, loaded.LessonCount())
	require.Equal(t, 1, loaded.QuizCount())
	require.Equal(t, 0, loaded.AssignmentCount())

	byIDs, err := repo.GetByIDs(ctx, []string{"C1", "missing"})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
	require.Equal(t, "Go Basics", byIDs["C1"].Title)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
