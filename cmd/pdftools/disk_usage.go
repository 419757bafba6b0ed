// disk_usage.go — объём файловой системы под PT_DATA_DIR.
// Unix-специфичный код; итог пишется в лог один раз при старте.
package main

import (
	"fmt"
	"syscall"
)

// getDiskUsage возвращает общий, занятый и свободный объём файловой
// системы, на которой расположена директория path, в байтах.
// Занятый объём считается от доступного (Bavail), а не от свободного:
// нас интересует место, которым процесс реально может воспользоваться.
func getDiskUsage(path string) (total, used, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}

	total = int64(stat.Blocks) * int64(stat.Bsize)
	available = int64(stat.Bavail) * int64(stat.Bsize)
	used = total - available

	return total, used, available, nil
}
