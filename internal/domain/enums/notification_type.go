package enums

type NotificationType string

const (
	NotificationTypeMatch   NotificationType = "match"
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeMessage NotificationType = "message"
)
