package authapi

// credentialsRequest is the body of /sign-in and /get-token.
type credentialsRequest struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
}

// sessionRequest is the body of /account-info and /sign-out.
type sessionRequest struct {
	GUID         string `json:"guid"`
	SessionToken string `json:"session_token"`
}

// SignInResponse is the decoded body of a successful /sign-in.
type SignInResponse struct {
	GUID         string
	Mail         string
	ProfileImage *string
	SessionToken string
}

// TokenResponse is the decoded body of a successful /get-token.
type TokenResponse struct {
	GUID         string
	SessionToken string
}

// AccountInfoResponse is the decoded body of a successful /account-info.
// Tokens lists the session tokens the server holds for the account.
type AccountInfoResponse struct {
	GUID         string
	Mail         string
	ProfileImage *string
	Tokens       []string
}

// SignOutResponse is the decoded body of a successful /sign-out.
type SignOutResponse struct {
	Message string
}
