package i18n

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// ParseLanguage maps a config value onto a supported language, defaulting to English.
func ParseLanguage(s string) Language {
	if strings.EqualFold(strings.TrimSpace(s), string(LangZH)) {
		return LangZH
	}
	return LangEN
}

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	UsingDBPath        string
	ServerListening    string
	ShuttingDown       string
	MetricsInit        string
	EngineServiceInit  string
	ConfigLoadFailed   string
	DBInitFailed       string
	DBMigrationsFailed string
	StateLoadFailed    string
	APIServerError     string
	SymbolsLoaded      string
	SymbolsLoadFailed  string

	// Sessions
	SessionOpened        string
	SessionClosed        string
	SessionPositionStale string
	PositionRefreshed    string
	PositionRefreshError string
	PanelExpanded        string
	PanelCollapsed       string
	PayloadAssembled     string
	PayloadRejected      string

	// Services
	ReconStarted           string
	ReconFailed            string
	BinanceFeedStarted     string
	MockFeedStarted        string
	FeedReconnecting       string
	FeedError              string
	WebsocketUpgradeFailed string

	// Validation
	ValueRequired            string
	ValueMalformed           string
	ValueNotPositive         string
	ValueOutOfRange          string
	PercentageOutOfRange     string
	PercentageMustBeNegative string
	PercentageMustBePositive string
	ExitTotalExceeded        string
	LeverageOutOfRange       string
	LeverageLocked           string
	UnknownOption            string
	LimitPriceMin            string
	LimitPriceMax            string
	LimitCostMin             string
	LimitCostMax             string
	LimitUnitsMin            string
	LimitUnitsMax            string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	// System
	Starting:           "Starting terminal parameter engine...",
	ConfigLoaded:       "Config loaded (Port: %s)",
	UsingDBPath:        "Using DB path: %s",
	ServerListening:    "Server listening on :%s",
	ShuttingDown:       "Shutting down gracefully...",
	MetricsInit:        "Terminal metrics registered",
	EngineServiceInit:  "Engine service initialized",
	ConfigLoadFailed:   "Failed to load config: %v",
	DBInitFailed:       "Failed to init database: %v",
	DBMigrationsFailed: "Failed to apply migrations: %v",
	StateLoadFailed:    "Failed to load positions: %v",
	APIServerError:     "API server error: %v",
	SymbolsLoaded:      "Loaded %d symbols from %s",
	SymbolsLoadFailed:  "Failed to load symbols: %v",

	// Sessions
	SessionOpened:        "Session %s opened for %s (position: %s)",
	SessionClosed:        "Session %s closed",
	SessionPositionStale: "Session %s ignored stale position snapshot v%d",
	PositionRefreshed:    "Position %s refreshed to v%d",
	PositionRefreshError: "Position %s refresh failed: %v",
	PanelExpanded:        "Session %s panel %s expanded",
	PanelCollapsed:       "Session %s panel %s collapsed",
	PayloadAssembled:     "Session %s payload assembled (%d dca, %d take-profit, %d reduce)",
	PayloadRejected:      "Session %s payload rejected: %d field errors",

	// Services
	ReconStarted:           "Reconciliation service started (interval: %v)",
	ReconFailed:            "Reconciliation failed for %d positions",
	BinanceFeedStarted:     "Binance mark price feed started for %v",
	MockFeedStarted:        "Mock feed started for %v",
	FeedReconnecting:       "Price feed disconnected, reconnecting in %v: %v",
	FeedError:              "Price feed error: %v",
	WebsocketUpgradeFailed: "Websocket upgrade failed: %v",

	// Validation
	ValueRequired:            "This field is required",
	ValueMalformed:           "Enter a valid number",
	ValueNotPositive:         "Value must be greater than 0",
	ValueOutOfRange:          "Value is too large",
	PercentageOutOfRange:     "Enter a percentage greater than 0 and up to 100",
	PercentageMustBeNegative: "Percentage must be below 0",
	PercentageMustBePositive: "Percentage must be above 0",
	ExitTotalExceeded:        "Exit percentages add up to more than 100",
	LeverageOutOfRange:       "Leverage must be between 1 and %v",
	LeverageLocked:           "Leverage cannot be changed in cross margin for this market",
	UnknownOption:            "Unsupported value %q",
	LimitPriceMin:            "Price must be at least %v",
	LimitPriceMax:            "Price must be at most %v",
	LimitCostMin:             "Cost must be at least %v",
	LimitCostMax:             "Cost must be at most %v",
	LimitUnitsMin:            "Units must be at least %v",
	LimitUnitsMax:            "Units must be at most %v",
}

// Chinese messages
var messagesZH = Messages{
	// System
	Starting:           "正在啟動交易終端參數引擎...",
	ConfigLoaded:       "配置已載入（端口：%s）",
	UsingDBPath:        "資料庫路徑：%s",
	ServerListening:    "伺服器監聽於 :%s",
	ShuttingDown:       "正在優雅關閉...",
	MetricsInit:        "終端指標已註冊",
	EngineServiceInit:  "引擎服務已初始化",
	ConfigLoadFailed:   "載入配置失敗：%v",
	DBInitFailed:       "初始化資料庫失敗：%v",
	DBMigrationsFailed: "套用遷移失敗：%v",
	StateLoadFailed:    "載入倉位失敗：%v",
	APIServerError:     "API 伺服器錯誤：%v",
	SymbolsLoaded:      "已從 %[2]s 載入 %[1]d 個交易對",
	SymbolsLoadFailed:  "載入交易對失敗：%v",

	// Sessions
	SessionOpened:        "會話 %s 已開啟：%s（倉位：%s）",
	SessionClosed:        "會話 %s 已關閉",
	SessionPositionStale: "會話 %s 忽略過期倉位快照 v%d",
	PositionRefreshed:    "倉位 %s 已刷新至 v%d",
	PositionRefreshError: "倉位 %s 刷新失敗：%v",
	PanelExpanded:        "會話 %s 面板 %s 已展開",
	PanelCollapsed:       "會話 %s 面板 %s 已收合",
	PayloadAssembled:     "會話 %s 參數已組裝（加倉 %d、止盈 %d、減倉 %d）",
	PayloadRejected:      "會話 %s 參數被拒絕：%d 個欄位錯誤",

	// Services
	ReconStarted:           "對帳服務已啟動（間隔：%v）",
	ReconFailed:            "對帳失敗：%d 個倉位",
	BinanceFeedStarted:     "Binance 標記價格推送已啟動：%v",
	MockFeedStarted:        "模擬行情已啟動：%v",
	FeedReconnecting:       "行情連線中斷，%v 後重連：%v",
	FeedError:              "行情錯誤：%v",
	WebsocketUpgradeFailed: "Websocket 升級失敗：%v",

	// Validation
	ValueRequired:            "此欄位為必填",
	ValueMalformed:           "請輸入有效數字",
	ValueNotPositive:         "數值必須大於 0",
	ValueOutOfRange:          "數值過大",
	PercentageOutOfRange:     "請輸入大於 0 且不超過 100 的百分比",
	PercentageMustBeNegative: "百分比必須小於 0",
	PercentageMustBePositive: "百分比必須大於 0",
	ExitTotalExceeded:        "出場百分比總和超過 100",
	LeverageOutOfRange:       "槓桿必須介於 1 與 %v 之間",
	LeverageLocked:           "此市場在全倉模式下無法調整槓桿",
	UnknownOption:            "不支援的值 %q",
	LimitPriceMin:            "價格不得低於 %v",
	LimitPriceMax:            "價格不得高於 %v",
	LimitCostMin:             "金額不得低於 %v",
	LimitCostMax:             "金額不得高於 %v",
	LimitUnitsMin:            "數量不得低於 %v",
	LimitUnitsMax:            "數量不得高於 %v",
}

func init() {
	messages = &messagesEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}

// Format renders a message with its arguments.
func Format(key string, args ...any) string {
	return fmt.Sprintf(Get(key), args...)
}
