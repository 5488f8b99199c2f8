package styles

// Tip: To find icons use https://github.com/loichyan/nerdfix

// Notification type icons
var (
	IconCalendar   = "\uf073" // booking
	IconCreditCard = "\uf09d" // payment
	IconClock      = "\uf017" // reminder
	IconShield     = "\uf132" // admin
	IconCheck      = "\uf00c"
	IconWarning    = "\uf071"
	IconError      = "\uf057"
	IconInfo       = "\uf05a"
)

// Status bar icons
var (
	IconBell      = "\uf0f3"
	IconSoundOn   = "\uf028"
	IconSoundOff  = "\uf026"
	IconOnline    = "\uf1eb"
	IconOffline   = "\uf127"
	IconPush      = "\uf0e7"
	IconPolling   = "\uf021"
	IconUnreadDot = "●"
	IconReadDot   = "○"
)
