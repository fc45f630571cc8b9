package config

import "os"

func IsDebug() bool {
	return os.Getenv("MEMORA_DEBUG") == "1"
}
