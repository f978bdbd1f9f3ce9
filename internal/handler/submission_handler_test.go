package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulaworks/aula-go-api/internal/config"
	"github.com/aulaworks/aula-go-api/internal/dto"
	"github.com/aulaworks/aula-go-api/internal/handler"
	"github.com/aulaworks/aula-go-api/internal/models"
	"github.com/aulaworks/aula-go-api/internal/repository"
	"github.com/aulaworks/aula-go-api/internal/router"
	"github.com/aulaworks/aula-go-api/internal/service"
)

type testStorage struct{}

func (s *testStorage) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + name, nil
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, validate, &testStorage{}, service.SubmissionServiceOptions{}, logger)

	app := fiber.New()
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)

	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		SubmissionHandler: submissionHandler,
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id := c.Get("X-Test-User"); id != "" {
				parsed, err := strconv.ParseUint(id, 10, 64)
				require.NoError(t, err)
				c.Locals("user_id", uint(parsed))
			}
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", role)
			}
			return c.Next()
		},
	})

	return app, db
}

type fixture struct {
	teacher    models.User
	outsider   models.User
	student    models.User
	assignment models.Assignment
}

func seedFixture(t *testing.T, db *gorm.DB, deadline time.Time) fixture {
	t.Helper()

	teacher := models.User{Name: "Prof. Rivera", Email: "rivera@example.com", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&teacher).Error)
	outsider := models.User{Name: "Prof. Wu", Email: "wu@example.com", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&outsider).Error)
	student := models.User{Name: "Ana", Email: "ana@example.com", Role: models.RoleStudent, StudentNumber: "A0091"}
	require.NoError(t, db.Create(&student).Error)

	group := models.Group{Name: "Physics A", Code: "PHY-A", TeacherID: teacher.ID}
	require.NoError(t, db.Create(&group).Error)

	assignment := models.Assignment{
		Title:    "Lab Report",
		GroupID:  group.ID,
		OwnerID:  teacher.ID,
		Deadline: deadline,
		MaxScore: 100,
	}
	require.NoError(t, db.Create(&assignment).Error)

	return fixture{teacher: teacher, outsider: outsider, student: student, assignment: assignment}
}

func submitRequest(t *testing.T, assignmentID uint, filename, comment string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("assignment_id", strconv.FormatUint(uint64(assignmentID), 10)))
	if comment != "" {
		require.NoError(t, writer.WriteField("comment", comment))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("lab results for " + filename))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func asUser(req *http.Request, user models.User) *http.Request {
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(user.ID), 10))
	req.Header.Set("X-Test-Role", user.Role)
	return req
}

func decodeSubmission(t *testing.T, resp *http.Response) dto.SubmissionResponse {
	t.Helper()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
		Message string                 `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestSubmissionLifecycle(t *testing.T) {
	app, db := setupApp(t)
	fx := seedFixture(t, db, time.Now().Add(72*time.Hour))

	// first submission
	resp, err := app.Test(asUser(submitRequest(t, fx.assignment.ID, "a.pdf", "first try"), fx.student))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	created := decodeSubmission(t, resp)
	require.Equal(t, models.SubmissionStatusSubmitted, created.Status)
	require.Equal(t, "https://files.test/a.pdf", created.ArtifactURL)
	require.Equal(t, fx.student.ID, created.StudentID)

	// replacement before the deadline reuses the same record
	resp, err = app.Test(asUser(submitRequest(t, fx.assignment.ID, "b.pdf", "final version"), fx.student))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	replaced := decodeSubmission(t, resp)
	require.Equal(t, created.ID, replaced.ID)
	require.Equal(t, "https://files.test/b.pdf", replaced.ArtifactURL)

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	// owner lists submissions with student identity joined
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/assignments/%d/submissions", fx.assignment.ID), nil)
	resp, err = app.Test(asUser(req, fx.teacher))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listEnvelope struct {
		Data []dto.SubmissionResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listEnvelope))
	require.Len(t, listEnvelope.Data, 1)
	require.Equal(t, "ana@example.com", listEnvelope.Data[0].Student.Email)

	// a teacher who does not own the assignment is rejected
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/assignments/%d/submissions", fx.assignment.ID), nil)
	resp, err = app.Test(asUser(req, fx.outsider))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// owner grades the submission
	gradeBody, err := json.Marshal(map[string]interface{}{"score": 85, "comment": "solid work"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/submissions/%d/grade", created.ID), bytes.NewReader(gradeBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(asUser(req, fx.teacher))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	graded := decodeSubmission(t, resp)
	require.Equal(t, models.SubmissionStatusGraded, graded.Status)
	require.Equal(t, 85.0, *graded.Grade)

	// grading appends to the history table
	var historyCount int64
	require.NoError(t, db.Model(&models.SubmissionGradeHistory{}).Count(&historyCount).Error)
	require.Equal(t, int64(1), historyCount)

	// the grade locks the record for further edits
	resp, err = app.Test(asUser(submitRequest(t, fx.assignment.ID, "c.pdf", ""), fx.student))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// student sees the grade in their own listing
	req = httptest.NewRequest(http.MethodGet, "/api/v1/submissions/mine", nil)
	resp, err = app.Test(asUser(req, fx.student))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listEnvelope))
	require.Len(t, listEnvelope.Data, 1)
	require.Equal(t, 85.0, *listEnvelope.Data[0].Grade)
	require.Equal(t, "Lab Report", listEnvelope.Data[0].Assignment.Title)
}

func TestSubmissionAfterDeadline(t *testing.T) {
	app, db := setupApp(t)
	fx := seedFixture(t, db, time.Now().Add(-time.Hour))

	// a pair's very first submission is accepted late
	resp, err := app.Test(asUser(submitRequest(t, fx.assignment.ID, "late.pdf", ""), fx.student))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	created := decodeSubmission(t, resp)
	require.Equal(t, models.SubmissionStatusLate, created.Status)

	// but editing it is locked
	resp, err = app.Test(asUser(submitRequest(t, fx.assignment.ID, "later.pdf", ""), fx.student))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestSubmissionValidation(t *testing.T) {
	app, db := setupApp(t)
	fx := seedFixture(t, db, time.Now().Add(72*time.Hour))

	// missing file
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("assignment_id", strconv.FormatUint(uint64(fx.assignment.ID), 10)))
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(asUser(req, fx.student))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// teachers cannot submit
	resp, err = app.Test(asUser(submitRequest(t, fx.assignment.ID, "a.pdf", ""), fx.teacher))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// unknown assignment
	resp, err = app.Test(asUser(submitRequest(t, 9999, "a.pdf", ""), fx.student))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// anonymous caller
	resp, err = app.Test(submitRequest(t, fx.assignment.ID, "a.pdf", ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGradeValidation(t *testing.T) {
	app, db := setupApp(t)
	fx := seedFixture(t, db, time.Now().Add(72*time.Hour))

	resp, err := app.Test(asUser(submitRequest(t, fx.assignment.ID, "a.pdf", ""), fx.student))
	require.NoError(t, err)
	created := decodeSubmission(t, resp)

	grade := func(user models.User, payload map[string]interface{}) *http.Response {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/submissions/%d/grade", created.ID), bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(asUser(req, user))
		require.NoError(t, err)
		return resp
	}

	// score above the assignment maximum
	resp = grade(fx.teacher, map[string]interface{}{"score": 150})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// missing score
	resp = grade(fx.teacher, map[string]interface{}{"comment": "??"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// non-owner teacher
	resp = grade(fx.outsider, map[string]interface{}{"score": 50})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// the record is untouched after all rejections
	var stored models.Submission
	require.NoError(t, db.First(&stored, created.ID).Error)
	require.Nil(t, stored.Grade)
	require.Equal(t, models.SubmissionStatusSubmitted, stored.Status)
}
