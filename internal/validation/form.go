// Package validation содержит функции валидации входных данных.
package validation

import (
	"regexp"
	"strings"

	"github.com/mmeshcher/bookstore-checkout/internal/model"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9 ()-]{5,20}$`)
)

const maxFieldLen = 80

// ValidateOrderForm проверяет поля формы оформления заказа.
// Возвращает ошибки по полям; пустой результат означает валидную форму.
func ValidateOrderForm(f model.OrderForm) map[string]string {
	errs := make(map[string]string)

	requireField(errs, "full_name", f.FullName)
	requireField(errs, "email", f.Email)
	requireField(errs, "phone_number", f.PhoneNumber)
	requireField(errs, "country", f.Country)
	requireField(errs, "town_or_city", f.TownOrCity)
	requireField(errs, "street_address1", f.StreetAddress1)

	if _, bad := errs["email"]; !bad && !emailRe.MatchString(f.Email) {
		errs["email"] = "enter a valid email address"
	}
	if _, bad := errs["phone_number"]; !bad && !phoneRe.MatchString(strings.TrimSpace(f.PhoneNumber)) {
		errs["phone_number"] = "enter a valid phone number"
	}

	for field, value := range map[string]string{
		"full_name":       f.FullName,
		"email":           f.Email,
		"phone_number":    f.PhoneNumber,
		"country":         f.Country,
		"postcode":        f.Postcode,
		"town_or_city":    f.TownOrCity,
		"street_address1": f.StreetAddress1,
		"street_address2": f.StreetAddress2,
		"county":          f.County,
	} {
		if _, bad := errs[field]; !bad && len(value) > maxFieldLen {
			errs[field] = "value is too long"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func requireField(errs map[string]string, name, value string) {
	if strings.TrimSpace(value) == "" {
		errs[name] = "this field is required"
	}
}

// IsValidProfileAddress проверяет адресные поля профиля. Все поля
// необязательны, но заполненные должны иметь корректный формат.
func IsValidProfileAddress(addr model.DefaultAddress) bool {
	if addr.PhoneNumber != "" && !phoneRe.MatchString(strings.TrimSpace(addr.PhoneNumber)) {
		return false
	}

	for _, value := range []string{
		addr.PhoneNumber, addr.Country, addr.Postcode, addr.TownOrCity,
		addr.StreetAddress1, addr.StreetAddress2, addr.County,
	} {
		if len(value) > maxFieldLen {
			return false
		}
	}

	return true
}
