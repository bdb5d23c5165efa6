package config

import "time"

type Config struct {
	// Ограничение на всю попытку оплаты, включая ожидание блокировки заказа
	TxTimeout time.Duration
}
