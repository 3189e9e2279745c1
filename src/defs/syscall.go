package defs

// Syscall numbers, stable across the a7 register ABI (spec.md §6). Gaps are
// intentional: the numbering matches the order user_lib.c's wrappers were
// introduced in, not a dense enumeration.
const (
	SYS_PRINT    = 1
	SYS_SCAN     = 2
	SYS_EXIT     = 3

	SYS_ALLOCATE_PAGE = 10
	SYS_FREE_PAGE     = 11

	SYS_FORK = 20
	SYS_YIELD = 21
	SYS_EXEC  = 22
	SYS_WAIT  = 23

	SYS_OPEN     = 30
	SYS_READ     = 31
	SYS_WRITE    = 32
	SYS_LSEEK    = 33
	SYS_STAT     = 34
	SYS_DISK_STAT = 35
	SYS_CLOSE    = 36
	SYS_OPENDIR  = 37
	SYS_READDIR  = 38
	SYS_MKDIR    = 39
	SYS_CLOSEDIR = 40
	SYS_LINK     = 41
	SYS_UNLINK   = 42
	SYS_RCWD     = 43
	SYS_CCWD     = 44

	SYS_BETTER_ALLOCATE_PAGE = 50
	SYS_BETTER_FREE_PAGE     = 51

	SYS_SEM_NEW = 60
	SYS_SEM_P   = 61
	SYS_SEM_V   = 62

	SYS_PRINTPA = 70
)
