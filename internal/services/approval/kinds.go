package approval

import (
	"fmt"
	"strings"

	"github.com/Uz11ps/markethelper/internal/models"
)

// descriptor тексты для одного вида заявок.
type descriptor struct {
	slug         string
	notFound     string
	processed    string
	approvedText func(res *models.ApproveResult) string
	rejectedText func(res *models.RejectResult, comment string) string
	// commentRequired требует комментарий при отклонении.
	commentRequired bool
}

var descriptors = map[models.RequestKind]descriptor{
	models.KindReferralBonus: {
		slug:      "bonuses",
		notFound:  "Бонус не найден",
		processed: "Бонус уже обработан",
		approvedText: func(res *models.ApproveResult) string {
			return fmt.Sprintf("🎉 Ваш реферал @%s активировал подписку! Вам начислено +%d бонусов на баланс.",
				res.ReferredUsername, res.Credited)
		},
	},
	models.KindChannelBonus: {
		slug:      "channel-bonuses",
		notFound:  "Заявка не найдена",
		processed: "Заявка уже обработана",
		approvedText: func(res *models.ApproveResult) string {
			return fmt.Sprintf("✅ Бонус за подписку на канал начислен: +%d токенов. Баланс: %d.",
				res.Credited, res.NewBalance)
		},
		rejectedText: func(_ *models.RejectResult, comment string) string {
			return withComment("❌ Заявка на бонус за подписку на канал отклонена.", comment)
		},
	},
	models.KindTokenPurchase: {
		slug:      "token-purchases",
		notFound:  "Заявка не найдена",
		processed: "Заявка уже обработана",
		approvedText: func(res *models.ApproveResult) string {
			return fmt.Sprintf("✅ Заявка #%d на покупку токенов одобрена: +%d токенов. Баланс: %d.",
				res.ID, res.Credited, res.NewBalance)
		},
		rejectedText: func(res *models.RejectResult, comment string) string {
			return withComment(fmt.Sprintf("❌ Заявка #%d на покупку токенов отклонена.", res.ID), comment)
		},
	},
	models.KindReferralPayout: {
		slug:      "referral-payouts",
		notFound:  "Заявка не найдена",
		processed: "Заявка уже обработана",
		approvedText: func(res *models.ApproveResult) string {
			return fmt.Sprintf("✅ Заявка #%d на выплату за рефералов одобрена.", res.ID)
		},
		rejectedText: func(res *models.RejectResult, comment string) string {
			return withComment(fmt.Sprintf("❌ Заявка #%d на выплату за рефералов отклонена.", res.ID), comment)
		},
		commentRequired: true,
	},
}

// ParseKind возвращает вид заявки по сегменту пути (например, "channel-bonuses").
func ParseKind(slug string) (models.RequestKind, bool) {
	for kind, d := range descriptors {
		if d.slug == slug {
			return kind, true
		}
	}
	return "", false
}

// Slug возвращает сегмент пути для вида заявки.
func Slug(kind models.RequestKind) string {
	return descriptors[kind].slug
}

func withComment(text, comment string) string {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return text
	}
	return text + "\nКомментарий: " + comment
}
