package models

// Request models
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type DecideRequest struct {
	Action string `json:"action" binding:"required"`
}

type AddBookRequest struct {
	ExternalID    string   `json:"externalId"`
	Title         string   `json:"title" binding:"required"`
	Authors       []string `json:"authors"`
	Publisher     string   `json:"publisher"`
	PublishedDate string   `json:"publishedDate"`
	Description   string   `json:"description"`
	Thumbnail     string   `json:"thumbnail"`
	TotalCopies   int      `json:"totalCopies" binding:"required,min=1"`
}

type UpdateCopiesRequest struct {
	TotalCopies *int `json:"total_copies" binding:"required,min=0"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type SubmitResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
	Message   string `json:"message"`
}

type DecisionResponse struct {
	Status        string        `json:"status"`
	RequestID     string        `json:"requestId"`
	RequestType   RequestType   `json:"requestType"`
	RequestStatus RequestStatus `json:"requestStatus"`
	Message       string        `json:"message"`
}

type BookResponse struct {
	Status string `json:"status"`
	Book   *Book  `json:"book"`
}

type BookListResponse struct {
	Status     string `json:"status"`
	Books      []Book `json:"books"`
	TotalItems int    `json:"totalItems"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

type RecordResponse struct {
	Status string      `json:"status"`
	Record *BookRecord `json:"record"`
}

type RecordListResponse struct {
	Status     string       `json:"status"`
	Records    []RecordView `json:"records"`
	TotalItems int          `json:"totalItems,omitempty"`
	Page       int          `json:"page,omitempty"`
	Limit      int          `json:"limit,omitempty"`
}

type UserListResponse struct {
	Status string `json:"status"`
	Users  []User `json:"users"`
}

type UserResponse struct {
	Status string `json:"status"`
	User   *User  `json:"user"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
