// internal/locale/catalog.go
package locale

import "strings"

// Catalog is an in-memory message table keyed by language then message
// key. Lookup falls back to English, then to the key itself so a missing
// translation is visible instead of silent.
type Catalog struct {
	messages map[string]map[string]string
}

// NewCatalog returns the built-in message catalog.
func NewCatalog() *Catalog {
	return &Catalog{messages: builtinMessages}
}

func (c *Catalog) Get(languageCode, key string, vars map[string]string) string {
	msg, ok := c.lookup(languageCode, key)
	if !ok {
		if msg, ok = c.lookup("en", key); !ok {
			return key
		}
	}
	for name, value := range vars {
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

func (c *Catalog) lookup(languageCode, key string) (string, bool) {
	table, ok := c.messages[languageCode]
	if !ok {
		return "", false
	}
	msg, ok := table[key]
	return msg, ok
}

var builtinMessages = map[string]map[string]string{
	"en": {
		"payment_instructions": "Send exactly {amount} SOL to {address} with memo {memo}. The request expires in {ttl} minutes.",
		"payment_confirmed":    "Payment received. Your campaign #{campaign_id} is live: {total_jobs} posts scheduled.",
		"payment_timed_out":    "Payment request {memo} expired. No funds were received; start over to get a new memo.",
		"post_published":       "Campaign #{campaign_id}: your ad was posted to channel {channel_id}.",
		"campaign_completed":   "Campaign #{campaign_id} finished: {published}/{total} posts published ({success_rate}% success).",
		"campaign_failed":      "Campaign #{campaign_id} failed: none of the {total} posts could be published. Support has been notified.",
	},
	"ru": {
		"payment_instructions": "Отправьте ровно {amount} SOL на {address} с memo {memo}. Заявка истекает через {ttl} минут.",
		"payment_confirmed":    "Оплата получена. Кампания #{campaign_id} запущена: запланировано постов: {total_jobs}.",
		"payment_timed_out":    "Заявка на оплату {memo} истекла. Средства не поступили; начните заново для нового memo.",
		"post_published":       "Кампания #{campaign_id}: ваше объявление опубликовано в канале {channel_id}.",
		"campaign_completed":   "Кампания #{campaign_id} завершена: опубликовано {published}/{total} постов ({success_rate}% успешно).",
		"campaign_failed":      "Кампания #{campaign_id} не выполнена: ни один из {total} постов не опубликован. Поддержка уведомлена.",
	},
}
