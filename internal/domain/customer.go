package domain

import (
	"strings"
	"time"
)

// Customer описывает покупателя. Для сценария создания заказа клиент доступен только на чтение.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля клиента.
func (c *Customer) Validate() []error {
	var errs []error

	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	email := strings.TrimSpace(c.Email)
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		errs = append(errs, ErrCustomerEmailInvalid)
	}

	return errs
}
