package handlers

// ErrorResponse is the JSON error body returned by all endpoints.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// UploadResponse is the success body of the upload endpoint. Content is the
// extracted document text, truncated for display; Result is the analyzer
// verdict, passed through untruncated.
type UploadResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Result   string `json:"result"`
}
