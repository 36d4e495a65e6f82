package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marshallshelly/memra/pkg/auth"
	"github.com/marshallshelly/memra/pkg/runtime"
	"github.com/marshallshelly/memra/pkg/schema"
)

// Spec is one HTTP handler of a set, with its path relative to the
// entity prefix.
type Spec struct {
	Entity  string
	Policy  Policy
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

// HandlerSet is the type-erased view of a Set used to assemble routes.
type HandlerSet interface {
	Entity() *schema.Entity
	Specs() []Spec
}

// Specs returns the HTTP handlers of the enabled policies only.
func (s *Set[T]) Specs() []Spec {
	specs := make([]Spec, 0, len(s.policies))
	for _, p := range s.policies {
		specs = append(specs, Spec{
			Entity:  s.entity.Name,
			Policy:  p,
			Method:  p.Method(),
			Path:    p.Path(),
			Handler: s.httpHandler(p),
		})
	}
	return specs
}

func (s *Set[T]) httpHandler(p Policy) gin.HandlerFunc {
	switch p {
	case CreateAsOwner:
		return s.handleCreate
	case Read, ReadIfOwner, ReadIfVisible:
		return func(c *gin.Context) { s.handleRead(c, p) }
	case UpdateIfOwner:
		return s.handleUpdate
	case DeleteIfOwner:
		return s.handleDelete
	}
	return nil
}

func (s *Set[T]) handleCreate(c *gin.Context) {
	var fields T
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.Create(c.Request.Context(), auth.FromContext(c), fields)
	switch {
	case err == nil:
		if id, ok := keyOf(out); ok {
			c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+strconv.FormatInt(id, 10))
		}
		c.JSON(http.StatusCreated, out)
	case errors.Is(err, ErrDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "denied"})
	case errors.Is(err, runtime.ErrDuplicateKey), errors.Is(err, runtime.ErrForeignKeyViolation):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func (s *Set[T]) handleRead(c *gin.Context, p Policy) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, nil)
		return
	}

	ctx := c.Request.Context()
	var out *T
	switch p {
	case Read:
		out, err = s.Read(ctx, id)
	case ReadIfOwner:
		out, err = s.ReadIfOwner(ctx, auth.FromContext(c), id)
	default:
		out, err = s.ReadIfVisible(ctx, auth.FromContext(c), id)
	}
	s.respondRecord(c, out, err)
}

func (s *Set[T]) handleUpdate(c *gin.Context) {
	var rec T
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.UpdateIfOwner(c.Request.Context(), auth.FromContext(c), rec)
	s.respondRecord(c, out, err)
}

func (s *Set[T]) handleDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusOK, false)
		return
	}

	ok, err := s.DeleteIfOwner(c.Request.Context(), auth.FromContext(c), id)
	if err != nil && !errors.Is(err, ErrDenied) && !errors.Is(err, runtime.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, ok)
}

// respondRecord answers not found and denied identically.
func (s *Set[T]) respondRecord(c *gin.Context, out *T, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, out)
	case errors.Is(err, ErrDenied), errors.Is(err, runtime.ErrNotFound):
		c.JSON(http.StatusNotFound, nil)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func keyOf(v any) (int64, bool) {
	if k, ok := v.(schema.Identifiable); ok {
		return k.Key()
	}
	return 0, false
}
