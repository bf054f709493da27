package domain

import "errors"

var (
	// ErrCustomerNotFound возвращается, если клиент с указанным идентификатором не найден.
	ErrCustomerNotFound = errors.New("customer does not exist")
	// ErrInvalidProduct: заказ ссылается на несуществующий товар или запрашивает больше, чем есть на складе.
	ErrInvalidProduct = errors.New("order contains an invalid product")
	// ErrProductVanished: товар исчез между валидацией и списанием остатка.
	ErrProductVanished = errors.New("product does not exist, stock cannot be adjusted")
	// ErrInsufficientStock: условное списание не прошло: остаток меньше запрошенного.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductNotFound возвращается, если товар не найден в репозитории.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductAlreadyExists: товар с таким ID уже сохранён.
	ErrProductAlreadyExists = errors.New("product already exists")
	// ErrProductNameTaken: товар с таким названием уже существует.
	ErrProductNameTaken = errors.New("product name is already taken")
	// ErrCustomerAlreadyExists: клиент с таким ID уже сохранён.
	ErrCustomerAlreadyExists = errors.New("customer already exists")
	// ErrCustomerEmailTaken: клиент с таким email уже зарегистрирован.
	ErrCustomerEmailTaken = errors.New("customer email is already taken")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists: заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")

	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceNegative = errors.New("product price must be non-negative")
	// Ошибка отрицательного остатка товара.
	ErrProductQtyNegative = errors.New("product quantity must be non-negative")
	// Ошибка отсутствующего имени клиента.
	ErrCustomerNameRequired = errors.New("customer name is required")
	// Ошибка отсутствующего или некорректного email клиента.
	ErrCustomerEmailInvalid = errors.New("customer email is invalid")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsInvalidProduct проверяет, относится ли ошибка к невалидному составу заказа.
func IsInvalidProduct(err error) bool {
	return errors.Is(err, ErrInvalidProduct)
}

// IsNotFound проверяет, сигнализирует ли ошибка об отсутствии сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsValidation проверяет, вызвана ли ошибка некорректными входными данными.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrItemsRequired, ErrItemQtyInvalid, ErrItemProductRequired, ErrCustomerRequired,
		ErrProductNameRequired, ErrProductPriceNegative, ErrProductQtyNegative,
		ErrCustomerNameRequired, ErrCustomerEmailInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
