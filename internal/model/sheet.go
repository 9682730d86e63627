package model

// SheetValueRange 表格取值接口响应（首行为表头）
type SheetValueRange struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}
