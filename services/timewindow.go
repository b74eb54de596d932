package services

import "time"

// Чистые функции временных окон чек-ина. Окно чек-ина —
// [start - windowBefore, start): на границе открытия чек-ин уже разрешён,
// в момент старта турнира — уже нет.

func CheckinOpensAt(startTime time.Time, windowBefore time.Duration) time.Time {
	return startTime.Add(-windowBefore)
}

func CheckinWindowOpen(now, startTime time.Time, windowBefore time.Duration) bool {
	return !now.Before(CheckinOpensAt(startTime, windowBefore)) && now.Before(startTime)
}

// UndoDeadline — до какого момента включительно владелец может отменить
// свой чек-ин.
func UndoDeadline(checkedInAt time.Time, undoWindow time.Duration) time.Time {
	return checkedInAt.Add(undoWindow)
}

func UndoWindowExpired(now, checkedInAt time.Time, undoWindow time.Duration) bool {
	return now.After(UndoDeadline(checkedInAt, undoWindow))
}
