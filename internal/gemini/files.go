package gemini

// FileState represents the processing state of an uploaded file.
type FileState string

const (
	FileStateUnspecified FileState = "STATE_UNSPECIFIED"
	FileStateProcessing  FileState = "PROCESSING"
	FileStateActive      FileState = "ACTIVE"
	FileStateFailed      FileState = "FAILED"
)

// File is the resource created by a finalized resumable upload.
type File struct {
	Name           string     `json:"name"`
	DisplayName    string     `json:"displayName,omitempty"`
	MimeType       string     `json:"mimeType"`
	SizeBytes      string     `json:"sizeBytes,omitempty"`
	CreateTime     string     `json:"createTime,omitempty"`
	UpdateTime     string     `json:"updateTime,omitempty"`
	ExpirationTime string     `json:"expirationTime,omitempty"`
	SHA256Hash     string     `json:"sha256Hash,omitempty"`
	URI            string     `json:"uri"`
	State          FileState  `json:"state,omitempty"`
	Error          *FileError `json:"error,omitempty"`
}

// FileError carries upstream processing failure details.
type FileError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// uploadMetadata is the start-call body of a resumable upload: the file's
// declared display name wrapped under the "file" key.
type uploadMetadata struct {
	File uploadFileInfo `json:"file"`
}

type uploadFileInfo struct {
	DisplayName string `json:"display_name,omitempty"`
}
