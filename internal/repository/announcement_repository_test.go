package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campus-hub-api/internal/models"
)

func newAnnouncementRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func announcementRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "content", "category", "priority", "status", "is_pinned",
		"target_audience", "author_id", "view_count", "published_at", "expires_at",
		"created_at", "updated_at",
	})
}

func TestAnnouncementRepositoryListScopesAudience(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now()
	rows := announcementRows().AddRow(
		"a-1", "Library hours", "Extended", "academic", "normal", "published", false,
		pq.StringArray{"all"}, "staff-1", 3, now, nil,
		now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("status = 'published' AND (expires_at IS NULL OR expires_at > NOW()) AND target_audience && $1")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.AnnouncementFilter{
		AudienceTags: []string{"all", "students", "cse"},
		Page:         1,
		PageSize:     20,
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, pq.StringArray{"all"}, list[0].TargetAudience)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryListIncludesOwnDrafts(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("(status = 'published' OR author_id = $1)")).
		WillReturnRows(announcementRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.AnnouncementFilter{
		IncludeDrafts: true,
		AuthorID:      "staff-1",
		Page:          1,
		PageSize:      20,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryUpdateStatusConditional(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WithArgs("a-1", models.AnnouncementStatusDraft, models.AnnouncementStatusPublished, &now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.UpdateStatus(context.Background(), "a-1", models.AnnouncementStatusDraft, models.AnnouncementStatusPublished, &now)
	require.NoError(t, err)
	assert.True(t, updated)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err = repo.UpdateStatus(context.Background(), "a-1", models.AnnouncementStatusDraft, models.AnnouncementStatusPublished, nil)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryRecordRead(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	readAt := time.Now().UTC()

	// First read inserts the receipt and bumps the counter.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO announcement_reads").
		WithArgs("a-1", "student-1", readAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET view_count = view_count + 1")).
		WithArgs("a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	first, err := repo.RecordRead(context.Background(), "a-1", "student-1", readAt)
	require.NoError(t, err)
	assert.True(t, first)

	// Repeat read conflicts on the receipt and leaves the counter alone.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO announcement_reads").
		WithArgs("a-1", "student-1", readAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	first, err = repo.RecordRead(context.Background(), "a-1", "student-1", readAt)
	require.NoError(t, err)
	assert.False(t, first)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryToggleBookmark(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	// Nothing to delete, so the bookmark is added.
	mock.ExpectExec("DELETE FROM announcement_bookmarks").
		WithArgs("a-1", "student-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO announcement_bookmarks").
		WithArgs("a-1", "student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	bookmarked, err := repo.ToggleBookmark(context.Background(), "a-1", "student-1")
	require.NoError(t, err)
	assert.True(t, bookmarked)

	// Existing bookmark is removed.
	mock.ExpectExec("DELETE FROM announcement_bookmarks").
		WithArgs("a-1", "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	bookmarked, err = repo.ToggleBookmark(context.Background(), "a-1", "student-1")
	require.NoError(t, err)
	assert.False(t, bookmarked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec("INSERT INTO announcements").
		WillReturnResult(sqlmock.NewResult(1, 1))

	announcement := &models.Announcement{
		Title:          "Library hours",
		Content:        "Extended",
		Category:       "academic",
		Priority:       models.AnnouncementPriorityNormal,
		Status:         models.AnnouncementStatusDraft,
		TargetAudience: pq.StringArray{"all"},
		AuthorID:       "staff-1",
	}
	require.NoError(t, repo.Create(context.Background(), announcement))
	assert.NotEmpty(t, announcement.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
