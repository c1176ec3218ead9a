package jira

// IssueDTO is the minimal issue payload requested with fields=status.
type IssueDTO struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Status Status `json:"status"`
	} `json:"fields"`
}

// Status is an embedded status object.
type Status struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	UntranslatedName string `json:"untranslatedName,omitempty"`
}

// UserDTO identifies a comment author.
type UserDTO struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// CommentDTO is a single comment on an issue.
type CommentDTO struct {
	ID      string  `json:"id"`
	Body    string  `json:"body"`
	Author  UserDTO `json:"author"`
	Created string  `json:"created"`
	Updated string  `json:"updated"`
}

// CommentPage is one page of GET /issue/{key}/comment.
type CommentPage struct {
	Comments   []CommentDTO `json:"comments"`
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
}

// TransitionDTO is a transition currently available on an issue.
type TransitionDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   Status `json:"to"`
}

// TransitionsResponse wraps GET /issue/{key}/transitions.
type TransitionsResponse struct {
	Transitions []TransitionDTO `json:"transitions"`
}

// ProjectDTO is the project payload.
type ProjectDTO struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ErrorResponse is the standard Jira error body.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

func (c CommentDTO) toComment() Comment {
	author := c.Author.Name
	if author == "" {
		author = c.Author.DisplayName
	}
	return Comment{ID: c.ID, Body: c.Body, Author: author}
}
