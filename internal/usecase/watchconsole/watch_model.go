package watchconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	"paymonitor/internal/usecase/payment"
)

const maxShownRecords = 15

type Filter string

const (
	FilterAll    Filter = "all"
	FilterAlipay Filter = "alipay"
	FilterWechat Filter = "wechat"
)

// ParseFilter accepts all, alipay or wechat in any case; empty means all.
func ParseFilter(raw string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterAlipay:
		return FilterAlipay, nil
	case FilterWechat:
		return FilterWechat, nil
	default:
		return "", fmt.Errorf("unknown filter %q (all|alipay|wechat)", raw)
	}
}

type Options struct {
	Filter          Filter
	RefreshInterval time.Duration
}

type watchModel struct {
	ctx             context.Context
	service         *payment.Service
	filter          Filter
	refreshInterval time.Duration

	views  <-chan payment.View
	cancel func()

	view          payment.View
	hasView       bool
	summary       payment.Summary
	selectedIndex int
	status        string
}

type subscribedMsg struct {
	filter Filter
	views  <-chan payment.View
	cancel func()
	err    error
}

type viewMsg struct {
	views  <-chan payment.View
	view   payment.View
	closed bool
}

type summaryLoadedMsg struct {
	summary payment.Summary
	err     error
}

type tickMsg struct{}

type refreshDoneMsg struct {
	err error
}

func NewWatchModel(ctx context.Context, service *payment.Service, options Options) tea.Model {
	filter := options.Filter
	if filter == "" {
		filter = FilterAll
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &watchModel{
		ctx:             logging.WithComponent(ctx, "usecase.watchconsole"),
		service:         service,
		filter:          filter,
		refreshInterval: interval,
		status:          "加载中",
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.subscribeCmd(m.filter), m.loadSummaryCmd(), m.tickCmd())
}

func (m *watchModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case subscribedMsg:
		if msg.err != nil {
			m.status = "订阅失败: " + msg.err.Error()
			return m, nil
		}
		if msg.filter != m.filter {
			msg.cancel()
			return m, nil
		}
		m.stopWatching()
		m.views = msg.views
		m.cancel = msg.cancel
		return m, waitForViewCmd(msg.views)
	case viewMsg:
		if msg.views != m.views {
			return m, nil
		}
		if msg.closed {
			m.status = "订阅已结束"
			return m, nil
		}
		m.view = msg.view
		m.hasView = true
		m.clampSelection()
		m.status = fmt.Sprintf("已更新 v%d，共 %d 条", msg.view.Version, len(msg.view.Records))
		return m, tea.Batch(waitForViewCmd(m.views), m.loadSummaryCmd())
	case summaryLoadedMsg:
		if msg.err != nil {
			m.status = "汇总失败: " + msg.err.Error()
			return m, nil
		}
		m.summary = msg.summary
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())
	case refreshDoneMsg:
		if msg.err != nil {
			m.status = "刷新失败: " + msg.err.Error()
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stopWatching()
			return m, tea.Quit
		case "a":
			return m, m.switchFilter(FilterAll)
		case "1":
			return m, m.switchFilter(FilterAlipay)
		case "2":
			return m, m.switchFilter(FilterWechat)
		case "g":
			m.status = "手动刷新中"
			return m, m.refreshCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.view.Records)-1 {
				m.selectedIndex++
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *watchModel) switchFilter(filter Filter) tea.Cmd {
	if filter == m.filter {
		return nil
	}
	m.stopWatching()
	m.filter = filter
	m.hasView = false
	m.selectedIndex = 0
	m.status = "切换到 " + string(filter)
	return m.subscribeCmd(filter)
}

func (m *watchModel) stopWatching() {
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = nil
	m.views = nil
}

func (m *watchModel) clampSelection() {
	if m.selectedIndex >= len(m.view.Records) {
		m.selectedIndex = len(m.view.Records) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}

func (m *watchModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	amountStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("收款监控"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("filter=%s refresh=%s", m.filter, m.refreshInterval)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Summary"))
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("总计 %s  支付宝 %s  微信 %s  笔数 %d\n\n",
		amountStyle.Render("¥"+m.summary.Total.StringFixed(2)),
		m.summary.Alipay.StringFixed(2),
		m.summary.Wechat.StringFixed(2),
		m.summary.Count,
	))

	builder.WriteString(sectionStyle.Render("Records"))
	builder.WriteString("\n")
	switch {
	case !m.hasView:
		builder.WriteString(dimStyle.Render("- loading"))
		builder.WriteString("\n\n")
	case len(m.view.Records) == 0:
		builder.WriteString(dimStyle.Render("- no records"))
		builder.WriteString("\n\n")
	default:
		for index, record := range m.view.Records {
			if index >= maxShownRecords {
				builder.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", len(m.view.Records)-maxShownRecords)))
				builder.WriteString("\n")
				break
			}
			line := formatRecordLine(record)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	if m.hasView && m.selectedIndex < len(m.view.Records) {
		record := m.view.Records[m.selectedIndex]
		builder.WriteString(sectionStyle.Render("Detail"))
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("ID: %d\n", record.ID))
		builder.WriteString(fmt.Sprintf("Title: %s\n", record.Title))
		builder.WriteString(fmt.Sprintf("Text: %s\n", record.Description))
		builder.WriteString(fmt.Sprintf("Key: %s\n\n", firstNonEmpty(record.Key(), "-")))
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j 移动  a 全部  1 支付宝  2 微信  g 刷新  q 退出"))
	return builder.String()
}

func formatRecordLine(record domainpayment.Record) string {
	return fmt.Sprintf("%s  %-4s ¥%10s  %s",
		record.Timestamp.Local().Format("01-02 15:04:05"),
		record.Source.Label(),
		record.Amount.StringFixed(2),
		record.Title,
	)
}

func (m *watchModel) subscribeCmd(filter Filter) tea.Cmd {
	return func() tea.Msg {
		var (
			views  <-chan payment.View
			cancel func()
			err    error
		)
		switch filter {
		case FilterAlipay:
			views, cancel, err = m.service.WatchBySource(m.ctx, domainpayment.SourceAlipay)
		case FilterWechat:
			views, cancel, err = m.service.WatchBySource(m.ctx, domainpayment.SourceWechat)
		default:
			views, cancel, err = m.service.WatchAll(m.ctx)
		}
		if err != nil {
			logging.Warn(m.ctx, "subscribe live view failed",
				slog.String("filter", string(filter)),
				slog.Any("err", errs.Loggable(err)),
			)
		}
		return subscribedMsg{filter: filter, views: views, cancel: cancel, err: err}
	}
}

func waitForViewCmd(views <-chan payment.View) tea.Cmd {
	if views == nil {
		return nil
	}
	return func() tea.Msg {
		view, ok := <-views
		return viewMsg{views: views, view: view, closed: !ok}
	}
}

func (m *watchModel) loadSummaryCmd() tea.Cmd {
	return func() tea.Msg {
		summary, err := m.service.Summary(m.ctx, nil, nil)
		return summaryLoadedMsg{summary: summary, err: err}
	}
}

func (m *watchModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: m.service.RefreshView(m.ctx)}
	}
}

func (m *watchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
