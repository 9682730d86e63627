package sheetdeals

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SalesPulse/internal/config"
	"SalesPulse/internal/interfaces"
	"SalesPulse/internal/model"
	"SalesPulse/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// 成交表格的业务列（表头经规范化后模糊匹配，容忍空格/大小写差异）
const (
	colDemoBy     = "demo by"
	colOrganic    = "organic?"
	colRebuy      = "rebuy?"
	colDealAmount = "deal amount"
	colCloseDate  = "close date"
	colDealID     = "deal id"
)

// Adapter 成交表格适配器（单一来源，坏行跳过并计数）
type Adapter struct {
	cfg        *config.ProviderConfig
	team       *config.TeamConfig
	httpClient *http.Client
	logger     *logrus.Logger
	loc        *time.Location
	aliasToRep map[string]string // 别名（小写）→ 规范标识
	excluded   map[string]bool
}

func NewDealSheetAdapter(cfg *config.ProviderConfig, team *config.TeamConfig, loc *time.Location, logger *logrus.Logger) interfaces.DealSource {
	aliasToRep := make(map[string]string)
	for _, rep := range team.Representatives {
		aliasToRep[strings.ToLower(rep.Name)] = rep.Name
		for _, alias := range rep.Aliases {
			aliasToRep[strings.ToLower(strings.TrimSpace(alias))] = rep.Name
		}
	}
	excluded := make(map[string]bool)
	for _, name := range team.ExcludedNames {
		excluded[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return &Adapter{
		cfg:        cfg,
		team:       team,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
		loc:        loc,
		aliasToRep: aliasToRep,
		excluded:   excluded,
	}
}

func (a *Adapter) Name() string { return "sheetdeals" }

// FetchDeals 拉取表格值并转统一成交事件，返回（事件，被丢弃坏行数，错误）
func (a *Adapter) FetchDeals(ctx context.Context, rng model.DateRange) ([]*model.DealEvent, int, error) {
	valuesURL := fmt.Sprintf("%s/%s/values/%s", a.cfg.BaseURL, a.cfg.SheetID, url.PathEscape(a.cfg.ValueRange))
	headers := map[string]string{"Authorization": "Bearer " + a.cfg.AuthToken}

	var page model.SheetValueRange
	if err := httpclient.GetJSON(ctx, a.httpClient, valuesURL, headers, a.cfg.RetryCount, a.logger, &page); err != nil {
		return nil, 0, fmt.Errorf("拉取成交表格失败: %w", err)
	}
	if len(page.Values) < 2 {
		a.logger.Warn("成交表格无数据行")
		return nil, 0, nil
	}

	cols, err := mapColumns(page.Values[0])
	if err != nil {
		return nil, 0, err
	}

	var deals []*model.DealEvent
	dropped := 0

	for i, row := range page.Values[1:] {
		deal, ok := a.convertRow(row, cols, i+2, rng) // i+2：表头占第1行
		if !ok {
			dropped++
			continue
		}
		if deal == nil {
			continue // 排除名单或区间外，非坏行
		}
		deals = append(deals, deal)
	}

	a.logger.Infof("成交表格：%d条有效成交，%d条坏行被丢弃", len(deals), dropped)
	return deals, dropped, nil
}

// convertRow 单行转成交事件。返回（nil, true）表示行被主动跳过，（nil, false）表示坏行
func (a *Adapter) convertRow(row []string, cols columnIndex, rowNum int, rng model.DateRange) (*model.DealEvent, bool) {
	name := strings.ToLower(strings.TrimSpace(cell(row, cols.demoBy)))
	if name == "" {
		a.logger.Warnf("第%d行缺少Demo By，丢弃", rowNum)
		return nil, false
	}
	if a.excluded[name] {
		return nil, true
	}
	rep, ok := a.aliasToRep[name]
	if !ok {
		a.logger.Warnf("第%d行代表标识%q不在名册，丢弃", rowNum, name)
		return nil, false
	}

	closedAt, err := parseCloseDate(cell(row, cols.closeDate), a.loc)
	if err != nil {
		a.logger.Warnf("第%d行成交日期解析失败: %v，丢弃", rowNum, err)
		return nil, false
	}
	if !rng.Contains(closedAt, a.loc) {
		return nil, true
	}

	amount, err := ParseCurrency(cell(row, cols.dealAmount))
	if err != nil {
		a.logger.Warnf("第%d行金额解析失败: %v，丢弃", rowNum, err)
		return nil, false
	}
	if amount < 0 {
		a.logger.Warnf("第%d行金额为负（%.2f），丢弃", rowNum, amount)
		return nil, false
	}

	kind := model.DealNewClient
	if hasValue(cell(row, cols.rebuy)) {
		kind = model.DealRebuy
	}

	sourceID := cell(row, cols.dealID)
	if strings.TrimSpace(sourceID) == "" {
		sourceID = fmt.Sprintf("%s:row:%d", a.cfg.SheetID, rowNum)
	}

	return &model.DealEvent{
		Representative: rep,
		Date:           model.DayKey(closedAt, a.loc),
		Amount:         amount,
		Kind:           kind,
		Organic:        kind == model.DealNewClient && hasValue(cell(row, cols.organic)),
		SourceID:       sourceID,
		ClosedAt:       closedAt,
	}, true
}

// columnIndex 业务列在表头中的下标（-1表示缺失）
type columnIndex struct {
	demoBy    int
	organic   int
	rebuy     int
	dealAmount int
	closeDate int
	dealID    int
}

// mapColumns 表头模糊匹配（规范化后精确→包含→去空格）。必需列缺失即整源失败
func mapColumns(header []string) (columnIndex, error) {
	find := func(target string) int {
		targetNorm := normalizeColumn(target)
		for i, h := range header {
			if normalizeColumn(h) == targetNorm {
				return i
			}
		}
		for i, h := range header {
			hn := normalizeColumn(h)
			if strings.Contains(hn, targetNorm) || strings.Contains(targetNorm, hn) {
				return i
			}
		}
		targetFlat := strings.ReplaceAll(targetNorm, " ", "")
		for i, h := range header {
			if strings.ReplaceAll(normalizeColumn(h), " ", "") == targetFlat {
				return i
			}
		}
		return -1
	}

	cols := columnIndex{
		demoBy:     find(colDemoBy),
		organic:    find(colOrganic),
		rebuy:      find(colRebuy),
		dealAmount: find(colDealAmount),
		closeDate:  find(colCloseDate),
		dealID:     find(colDealID), // 可选
	}

	var missing []string
	if cols.demoBy < 0 {
		missing = append(missing, colDemoBy)
	}
	if cols.organic < 0 {
		missing = append(missing, colOrganic)
	}
	if cols.rebuy < 0 {
		missing = append(missing, colRebuy)
	}
	if cols.dealAmount < 0 {
		missing = append(missing, colDealAmount)
	}
	if cols.closeDate < 0 {
		missing = append(missing, colCloseDate)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("成交表格缺少必需列: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// normalizeColumn 表头规范化：小写、合并空格
func normalizeColumn(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// ParseCurrency 货币解析：剥离$/₹/逗号后转float
func ParseCurrency(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0, nil
	}
	for _, sym := range []string{"$", "₹", ","} {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("非法金额%q", s)
	}
	return v, nil
}

// parseCloseDate 成交日期解析（表格常见格式逐个尝试，按组织时区定位）
func parseCloseDate(s string, loc *time.Location) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("日期为空")
	}
	formats := []string{"2006-01-02", "01/02/2006", "1/2/2006", "Jan 2, 2006", "January 2, 2006"}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, cleaned, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期%q", s)
}

// hasValue 单元格是否有内容（非空白）
func hasValue(s string) bool {
	return strings.TrimSpace(s) != ""
}

// cell 越界安全取值
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
