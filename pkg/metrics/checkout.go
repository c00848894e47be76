package metrics

import "github.com/prometheus/client_golang/prometheus"

// Coupon application outcomes.
const (
	CouponApplied  = "applied"
	CouponUnknown  = "unknown"
	CouponRepeated = "repeated"
	CouponRejected = "rejected"
)

// CheckoutMetrics tracks the cart to paid-order funnel.
type CheckoutMetrics struct {
	ordersCreated prometheus.Counter
	coupons       *prometheus.CounterVec
	payments      *prometheus.CounterVec
	cartConflicts prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders materialized from carts.",
	})
	coupons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_coupon_applications_total",
		Help: "Coupon application attempts by result.",
	}, []string{"result"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_paid_total",
		Help: "Orders transitioned to paid, by confirmation source.",
	}, []string{"source"})
	cartConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_cas_exhausted_total",
		Help: "Cart writes abandoned after exhausting compare-and-swap retries.",
	})
	reg.MustRegister(ordersCreated, coupons, payments, cartConflicts)
	return &CheckoutMetrics{
		ordersCreated: ordersCreated,
		coupons:       coupons,
		payments:      payments,
		cartConflicts: cartConflicts,
	}
}

func (m *CheckoutMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *CheckoutMetrics) IncCoupon(result string) {
	if m == nil || m.coupons == nil {
		return
	}
	m.coupons.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CheckoutMetrics) IncPaid(source string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *CheckoutMetrics) IncCartConflict() {
	if m == nil || m.cartConflicts == nil {
		return
	}
	m.cartConflicts.Inc()
}
