package utils

import (
	"fmt"
	"os"
	"strings"
)

// secretsDir - стандартный путь монтирования Docker Secrets.
const secretsDir = "/run/secrets"

// ReadSecret читает секрет из файла Docker Secrets. Если файла нет,
// пробует одноименную переменную окружения в верхнем регистре -
// локальный запуск без Docker обходится без смонтированных секретов.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("%s/%s", secretsDir, secretName)

	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		if env := strings.TrimSpace(os.Getenv(strings.ToUpper(secretName))); env != "" {
			return env, nil
		}
		return "", fmt.Errorf("не удалось прочитать секрет %s: %w", filePath, err)
	}

	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("файл секрета %s пуст", filePath)
	}
	return secret, nil
}
