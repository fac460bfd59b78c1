package service

import (
	"context"
	"errors"
	"strings"

	"github.com/taskdeck/backend/internal/db"
	"github.com/taskdeck/backend/internal/model"
)

// ErrTodoNotFound covers both a missing row and a row owned by someone else:
// non-owners cannot tell the two apart.
var ErrTodoNotFound = errors.New("todo not found")

type TodoStore interface {
	CreateTodo(ctx context.Context, userID int64, title, description string, completed bool) (*model.Todo, error)
	GetTodo(ctx context.Context, todoID, ownerID int64) (*model.Todo, error)
	ListTodos(ctx context.Context, filter model.TodoFilter) ([]model.Todo, int64, error)
	UpdateTodo(ctx context.Context, todoID, ownerID int64, title, description string, completed bool) (*model.Todo, error)
	DeleteTodo(ctx context.Context, todoID, ownerID int64) error
}

type TodosService struct {
	store TodoStore
}

func NewTodosService(store TodoStore) *TodosService {
	return &TodosService{store: store}
}

// scope maps the caller's identity to the owner restriction used by the
// store: admins see every row, everyone else only their own.
func scope(identity *model.AuthUser) int64 {
	if identity.IsAdmin() {
		return 0
	}
	return identity.ID
}

func (s *TodosService) List(ctx context.Context, identity *model.AuthUser, filter model.TodoFilter) (*model.TodoListResponse, error) {
	filter.UserID = scope(identity)
	filter.Page, filter.Limit = clampPage(filter.Page, filter.Limit)
	filter.Search = strings.TrimSpace(filter.Search)

	todos, total, err := s.store.ListTodos(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &model.TodoListResponse{
		Todos:      todos,
		Pagination: paginate(filter.Page, filter.Limit, total),
	}, nil
}

func (s *TodosService) Get(ctx context.Context, identity *model.AuthUser, todoID int64) (*model.Todo, error) {
	todo, err := s.store.GetTodo(ctx, todoID, scope(identity))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrTodoNotFound
		}
		return nil, err
	}
	return todo, nil
}

func (s *TodosService) Create(ctx context.Context, identity *model.AuthUser, req model.CreateTodoRequest) (*model.Todo, error) {
	return s.store.CreateTodo(ctx, identity.ID, strings.TrimSpace(req.Title), req.Description, req.Completed)
}

func (s *TodosService) Update(ctx context.Context, identity *model.AuthUser, todoID int64, req model.UpdateTodoRequest) (*model.Todo, error) {
	current, err := s.Get(ctx, identity, todoID)
	if err != nil {
		return nil, err
	}

	title := current.Title
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
	}
	description := current.Description
	if req.Description != nil {
		description = *req.Description
	}
	completed := current.Completed
	if req.Completed != nil {
		completed = *req.Completed
	}

	todo, err := s.store.UpdateTodo(ctx, todoID, scope(identity), title, description, completed)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrTodoNotFound
		}
		return nil, err
	}
	return todo, nil
}

func (s *TodosService) Delete(ctx context.Context, identity *model.AuthUser, todoID int64) error {
	if err := s.store.DeleteTodo(ctx, todoID, scope(identity)); err != nil {
		if db.IsNoRows(err) {
			return ErrTodoNotFound
		}
		return err
	}
	return nil
}
