package model

import "time"

type Todo struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateTodoRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=1000"`
	Completed   bool   `json:"completed"`
}

type UpdateTodoRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Completed   *bool   `json:"completed"`
}

// TodoFilter narrows a todo listing. UserID = 0 means no owner restriction
// (admin listing); Completed = nil means both states.
type TodoFilter struct {
	UserID    int64
	Search    string
	Completed *bool
	Page      int
	Limit     int
}

type TodoListResponse struct {
	Todos      []Todo     `json:"todos"`
	Pagination Pagination `json:"pagination"`
}
