package model

// CalendlyEventList scheduled_events 接口响应
type CalendlyEventList struct {
	Collection []CalendlyEvent    `json:"collection"`
	Pagination CalendlyPagination `json:"pagination"`
}

// CalendlyPagination 游标分页信息
type CalendlyPagination struct {
	NextPage string `json:"next_page"` // 下一页完整URL，空串表示结束
}

// CalendlyEvent 预约平台原生事件
type CalendlyEvent struct {
	URI       string `json:"uri"` // 全局唯一资源标识（去重键）
	Name      string `json:"name"`
	Status    string `json:"status"`     // active/canceled
	StartTime string `json:"start_time"` // RFC3339（UTC）
	EndTime   string `json:"end_time"`
}
