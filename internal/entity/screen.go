package domain

type Screen string

const (
	ScreenCatalog        Screen = "CATALOG"
	ScreenPaymentMethod  Screen = "PAYMENT_METHOD"
	ScreenCryptoPayment  Screen = "CRYPTO_PAYMENT"
	ScreenPaymentSuccess Screen = "PAYMENT_SUCCESS"
	ScreenSuccess        Screen = "SUCCESS"
	ScreenReceipt        Screen = "RECEIPT"
	ScreenDone           Screen = "DONE"
	ScreenError          Screen = "ERROR"
	ScreenBusy           Screen = "BUSY" // device busy, reported by the backend
)

// Tab is the step shown inside the catalog screen.
type Tab string

const (
	TabCapsules    Tab = "CAPSULES"
	TabAccessories Tab = "ACCESSORIES"
)

func ParseTab(s string) (Tab, bool) {
	switch Tab(s) {
	case TabCapsules, TabAccessories:
		return Tab(s), true
	}
	return "", false
}
