package relation

import (
	"context"
	"reflect"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/memra/pkg/builder"
	"github.com/marshallshelly/memra/pkg/runtime"
	"github.com/marshallshelly/memra/pkg/schema"
)

type User struct {
	schema.Model
	Username string
}

type Course struct {
	schema.Model
	UserID int64 `memra:"user_id,foreign(User),owner"`
	Name   string
}

type Follower struct {
	schema.Model
	FollowerID  int64 `memra:"follower_id,foreign(User),as(followers)"`
	FollowingID int64 `memra:"following_id,foreign(User),as(following)"`
}

type Sloppy struct {
	schema.Model
	AuthorID int64 `memra:"author_id,foreign(User)"`
	EditorID int64 `memra:"editor_id,foreign(User)"`
}

type Orphan struct {
	schema.Model
	GhostID int64 `memra:"ghost_id,foreign(Ghost)"`
}

func entities(t *testing.T, models ...any) []*schema.Entity {
	t.Helper()
	out := make([]*schema.Entity, len(models))
	for i, m := range models {
		e, err := schema.Parse(reflect.TypeOf(m))
		require.NoError(t, err)
		out[i] = e
	}
	return out
}

func TestLink(t *testing.T) {
	edges, err := Link(entities(t, User{}, Course{}, Follower{}))
	require.NoError(t, err)
	require.Len(t, edges, 3)

	course := edges[0]
	assert.Equal(t, "Course", course.Source.Name)
	assert.Equal(t, "User", course.Target.Name)
	assert.Equal(t, "get_user", course.Forward)
	assert.Equal(t, "find_course", course.Reverse)
	assert.Equal(t, "GetUser", course.ForwardGoName())
	assert.Equal(t, "FindCourse", course.ReverseGoName())
	assert.Equal(t, `SELECT "id", "username" FROM "users" WHERE "id" = $1`, course.ForwardStatement().SQL)
	assert.Equal(t, `SELECT "id", "user_id", "name" FROM "courses" WHERE "user_id" = $1`, course.ReverseStatement().SQL)

	assert.Equal(t, "get_follower", edges[1].Forward)
	assert.Equal(t, "find_followers", edges[1].Reverse)
	assert.Equal(t, "get_following", edges[2].Forward)
	assert.Equal(t, "find_following", edges[2].Reverse)
}

type CourseDeck struct {
	schema.Model
	CourseID int64 `memra:"course_id,foreign(Course)"`
}

func TestLink_MultiWordSource(t *testing.T) {
	edges, err := Link(entities(t, User{}, Course{}, CourseDeck{}))
	require.NoError(t, err)
	require.Len(t, edges, 2)

	e := edges[1]
	assert.Equal(t, "course_decks", e.Source.Table)
	assert.Equal(t, "get_course", e.Forward)
	assert.Equal(t, "find_course_deck", e.Reverse)
	assert.Equal(t, "FindCourseDeck", e.ReverseGoName())
}

func TestLink_Errors(t *testing.T) {
	_, err := Link(entities(t, User{}, Sloppy{}))
	assert.ErrorIs(t, err, schema.ErrAmbiguousRelation)

	_, err = Link(entities(t, User{}, Orphan{}))
	assert.ErrorIs(t, err, schema.ErrMissingRelationTarget)
}

func TestGet(t *testing.T) {
	edges, err := Link(entities(t, User{}, Course{}))
	require.NoError(t, err)
	edge := edges[0]

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(edge.ForwardStatement().SQL)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(int64(7), "ana"))

	u, err := Get[User](context.Background(), db, edge, &Course{UserID: 7, Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Username)

	mock.ExpectQuery(regexp.QuoteMeta(edge.ForwardStatement().SQL)).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}))

	_, err = Get[User](context.Background(), db, edge, Course{UserID: 8})
	assert.ErrorIs(t, err, runtime.ErrNotFound)

	_, err = Get[User](context.Background(), db, edge, &Follower{FollowerID: 7})
	assert.ErrorIs(t, err, runtime.ErrInvalidModel)
	_, err = Get[User](context.Background(), db, edge, (*Course)(nil))
	assert.ErrorIs(t, err, runtime.ErrInvalidModel)
	_, err = Get[User](context.Background(), db, edge, nil)
	assert.ErrorIs(t, err, runtime.ErrInvalidModel)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFind(t *testing.T) {
	edges, err := Link(entities(t, User{}, Course{}))
	require.NoError(t, err)
	edge := edges[0]

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	owner := User{Username: "ana"}
	_, err = Find[Course](context.Background(), db, edge, owner)
	assert.ErrorIs(t, err, ErrUnpersisted)

	owner.SetKey(7)
	cols := []string{"id", "user_id", "name"}
	mock.ExpectQuery(regexp.QuoteMeta(edge.ReverseStatement().SQL)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), int64(7), "Verbs").
			AddRow(int64(2), int64(7), "Nouns"))

	courses, err := Find[Course](context.Background(), db, edge, owner)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "Nouns", courses[1].Name)

	mock.ExpectQuery(regexp.QuoteMeta(edge.ReverseStatement().SQL + ` ORDER BY "name"`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols))

	courses, err = Find[Course](context.Background(), db, edge, &owner, builder.Asc("name"))
	require.NoError(t, err)
	assert.Empty(t, courses)

	_, err = Find[Course](context.Background(), db, edge, &Course{Model: owner.Model})
	assert.ErrorIs(t, err, runtime.ErrInvalidModel)

	_, err = Find[Course](context.Background(), db, edge, (*User)(nil))
	assert.ErrorIs(t, err, runtime.ErrInvalidModel)

	require.NoError(t, mock.ExpectationsWereMet())
}
