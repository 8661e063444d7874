package analytics

import (
	"fmt"
	"strings"

	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
)

// Locale carries the display strings and number separators used by the dashboard.
type Locale struct {
	Code         string
	DayNames     [7]string
	MonthNames   [12]string
	WeekLabel    string
	Unknown      string
	StatusLabels map[schema.OrderStatus]string
	GroupSep     string
	DecimalSep   string
}

// LocaleES is the default Spanish (Uruguay) locale.
var LocaleES = Locale{
	Code:       "es",
	DayNames:   [7]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"},
	MonthNames: [12]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"},
	WeekLabel:  "Sem %d",
	Unknown:    "Desconocido",
	StatusLabels: map[schema.OrderStatus]string{
		schema.StatusPending:   "Pedido Recibido",
		schema.StatusReady:     "Preparado",
		schema.StatusShipped:   "En Camino",
		schema.StatusDelivered: "Entregado",
		schema.StatusCancelled: "Cancelado",
	},
	GroupSep:   ".",
	DecimalSep: ",",
}

// LocaleEN is the English locale.
var LocaleEN = Locale{
	Code:       "en",
	DayNames:   [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	MonthNames: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	WeekLabel:  "Week %d",
	Unknown:    "Unknown",
	StatusLabels: map[schema.OrderStatus]string{
		schema.StatusPending:   "Order Received",
		schema.StatusReady:     "Prepared",
		schema.StatusShipped:   "On the Way",
		schema.StatusDelivered: "Delivered",
		schema.StatusCancelled: "Cancelled",
	},
	GroupSep:   ",",
	DecimalSep: ".",
}

// LocaleFor resolves a locale code such as "es", "es-UY" or "en". Unknown codes get LocaleES.
func LocaleFor(code string) Locale {
	lang, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(code)), "-")
	if lang == "en" {
		return LocaleEN
	}
	return LocaleES
}

// StatusLabel returns the localized label for status, applying the default-status rule.
func (l Locale) StatusLabel(status schema.OrderStatus) string {
	status = status.OrDefault()
	if label, ok := l.StatusLabels[status]; ok {
		return label
	}
	return status.Style().Label
}

// Week returns the label of the n-th week bucket, counting from 1.
func (l Locale) Week(n int) string {
	format := l.WeekLabel
	if format == "" {
		format = LocaleES.WeekLabel
	}
	return fmt.Sprintf(format, n)
}

// Placeholder returns value, or the locale's unknown marker when empty.
func (l Locale) Placeholder(value string) string {
	return schema.CustomerField(value, l.Unknown)
}
