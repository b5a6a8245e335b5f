// Package fuzztests houses Go fuzz harnesses that exercise the parsing
// pipeline (bytes -> scanner -> statement tree). Its goal is to smoke test
// robustness and guard against panics or hangs on arbitrary inputs.
//
// Назначение: прогонять произвольные байты через грамматику и проверять
// инварианты полученного дерева.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
//
// Зависимости: internal/pyparse, internal/pysrc, internal/testkit.

package fuzztests
