// Package smtp предоставляет транспорт для отправки почтовых уведомлений
// и интерфейсы, позволяющие подменять SMTP-соединение в тестах.
package smtp

import "io"

// Client — минимальный интерфейс SMTP-клиента, используемый при отправке письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface — интерфейс SMTP-транспорта.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
