package model

// ZoomTokenResponse OAuth account_credentials 授权响应
type ZoomTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ZoomUser 会议平台用户（按邮箱查询）
type ZoomUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ZoomRecordingList 用户录制列表响应
type ZoomRecordingList struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Meetings []ZoomMeeting `json:"meetings"`
}

// ZoomMeeting 会议平台原生会议记录（有录制即视为实际进行）
type ZoomMeeting struct {
	UUID           string              `json:"uuid"`
	ID             int64               `json:"id"`
	Topic          string              `json:"topic"`
	StartTime      string              `json:"start_time"` // RFC3339（UTC）
	RecordingFiles []ZoomRecordingFile `json:"recording_files"`
}

// ZoomRecordingFile 录制文件元信息
type ZoomRecordingFile struct {
	ID       string `json:"id"`
	FileType string `json:"file_type"`
}
