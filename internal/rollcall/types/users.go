package types

type User struct {
	ID          int64  `json:"id"`
	CardID      string `json:"card_id"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

type CreateUserRequest struct {
	CardID      string `json:"card_id"`
	DisplayName string `json:"display_name"`
}

type UsersResponse struct {
	Users []User `json:"users"`
}

type ClearEventsResponse struct {
	Deleted int64 `json:"deleted"`
}
