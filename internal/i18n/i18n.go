// Package i18n holds the console's message catalogs (zh-CN, en-US) and
// language negotiation helpers built on golang.org/x/text.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var (
	// Chinese is the default console language.
	Chinese = language.MustParse("zh-CN")
	// English is the alternative console language.
	English = language.MustParse("en-US")

	// Supported lists the catalog languages, default first.
	Supported = []language.Tag{Chinese, English}

	matcher = language.NewMatcher(Supported)
	cat     = buildCatalog()
)

var messages = map[string][2]string{ // key: {zh-CN, en-US}
	"articles.loadFailed":     {"加载文章失败", "Failed to load articles"},
	"articles.createFailed":   {"创建文章失败", "Failed to create article"},
	"articles.updateFailed":   {"更新文章失败", "Failed to update article"},
	"articles.deleteFailed":   {"删除文章失败", "Failed to delete article"},
	"categories.loadFailed":   {"加载分类失败", "Failed to load categories"},
	"categories.createFailed": {"创建分类失败", "Failed to create category"},
	"categories.updateFailed": {"更新分类失败", "Failed to update category"},
	"categories.deleteFailed": {"删除分类失败", "Failed to delete category"},
	"users.loadFailed":        {"加载用户失败", "Failed to load users"},
	"users.createFailed":      {"创建用户失败", "Failed to create user"},
	"users.updateFailed":      {"更新用户失败", "Failed to update user"},
	"users.deleteFailed":      {"删除用户失败", "Failed to delete user"},
	"dashboard.loadFailed":    {"加载仪表盘失败", "Failed to load dashboard"},

	"auth.loginFailed":   {"登录失败", "Login failed"},
	"auth.required":      {"请先登录", "Please sign in first"},
	"auth.forbidden":     {"没有权限访问", "You do not have access"},
	"auth.loggedOut":     {"已退出登录", "Signed out"},
	"auth.profileFailed": {"获取用户信息失败", "Failed to load profile"},
	"error.badRequest":   {"请求格式错误", "Malformed request"},
	"error.validation":   {"请求参数无效", "Invalid request"},
	"error.timeout":      {"请求超时", "The request timed out"},
	"error.transport":    {"无法连接服务器", "Cannot reach the server"},
	"error.internal":     {"服务器内部错误", "Internal server error"},
	"error.notFound":     {"记录不存在", "Record not found"},
	"common.saved":       {"保存成功", "Saved"},
	"common.deleted":     {"删除成功", "Deleted"},

	"common.totalRecords": {"共 %d 条记录", "%d records in total"},
}

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(Chinese))
	for key, texts := range messages {
		_ = b.SetString(Chinese, key, texts[0])
		_ = b.SetString(English, key, texts[1])
	}
	return b
}

// Match returns the supported language closest to the given BCP 47 tags or
// Accept-Language header value. Unknown or empty input yields Chinese.
func Match(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, p := range prefs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return Chinese
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Chinese
	}
	return Supported[idx]
}

// IsSupported reports whether s names a catalog language exactly (e.g. "en-US").
func IsSupported(s string) bool {
	t, err := language.Parse(s)
	if err != nil {
		return false
	}
	for _, sup := range Supported {
		if t == sup {
			return true
		}
	}
	return false
}

// Printer returns a message printer for tag backed by the console catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

// T translates key for tag. Unknown keys are returned unchanged.
func T(tag language.Tag, key string, args ...any) string {
	return Printer(tag).Sprintf(key, args...)
}

// Has reports whether key exists in the catalog.
func Has(key string) bool {
	_, ok := messages[key]
	return ok
}
