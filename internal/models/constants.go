package models

const (
	// DefaultSeatCount размер пула мест, создаваемого при старте
	DefaultSeatCount = 217

	// DefaultBlackoutHorizonDays на сколько дней вперед планировщик заполняет закрытые часы
	DefaultBlackoutHorizonDays = 3

	// Часы работы по будням и выходным; вне их действует blackout
	DefaultWeekdayOpenHour  = 8
	DefaultWeekdayCloseHour = 22
	DefaultWeekendOpenHour  = 9
	DefaultWeekendCloseHour = 17

	// RateLimitAttempts попыток бронирования на пользователя в окне
	RateLimitAttempts = 20

	// RateLimitWindow окно ограничения попыток бронирования
	RateLimitWindow = 60 // 1 минута в секундах

	// DefaultBusyTimeoutMS ожидание блокировки записи SQLite
	DefaultBusyTimeoutMS = 5000
)

const (
	BlackoutSourceScheduler = "scheduler"
	BlackoutSourceAdmin     = "admin"
)
