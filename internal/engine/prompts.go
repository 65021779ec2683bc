// Package engine implements the reminder and escalation state machine.
//
// This file holds the subject-facing Ukrainian message templates and the
// occurrence label helpers.
package engine

import (
	"fmt"
	"time"

	"github.com/BTreeMap/CarePing/internal/config"
)

func doseDuePrompt(name, label string) string {
	return fmt.Sprintf("%s, час прийняти ліки (%s). Підтвердіть, будь ласка.", name, label)
}

func doseNagPrompt(name string) string {
	return fmt.Sprintf("%s, нагадування: підтвердіть, будь ласка, що ви прийняли ліки.", name)
}

func doseMissedNotice(label string) string {
	return fmt.Sprintf("Пропущено прийом ліків %s!! Інформую доглядальника.", label)
}

func doseEscalationNotice(subjectLabel string, dueAt time.Time, loc *time.Location) string {
	return fmt.Sprintf("Ескалація: %s не підтвердив(ла) прийом ліків (на %s).", subjectLabel, formatLocal(dueAt, loc))
}

func doseConfirmedAck(label string) string {
	return fmt.Sprintf("Прийом ліків %s підтверджено ✅", label)
}

func confirmedAfterEscalationNotice(subjectLabel, label string) string {
	return fmt.Sprintf("Оновлення: %s підтвердив(ла) прийом ліків %s після ескалації.", subjectLabel, label)
}

func genericAck() string {
	return "Дякую, зафіксовано ✅"
}

func negationAck() string {
	return "Добре, зафіксував(ла) ❎"
}

func duplicateAck() string {
	return "Вже зафіксовано раніше ✅"
}

func measureDuePrompt(name string) string {
	return fmt.Sprintf("%s, час виміряти тиск сьогодні. Відправте «тип сис діа пульс», напр.: «швидко 120 80 60».", name)
}

func clarifyPrompt() string {
	return "Не бачу коректного повідомлення про тиск. Формат: «тип сис діа пульс»."
}

func clarifyNagPrompt() string {
	return "Нагадування: надішліть тиск у форматі «тип сис діа пульс», напр.: «швидко 120 80 60»."
}

func needTypePrompt() string {
	return "Будь ласка, надішліть тиск з типом: «тип сис діа пульс».\nПриклади: «швидко 120 80 60», «повільно 118 76 58»."
}

func readingRecordedAck(measureType string, systolic, diastolic, pulse int) string {
	if measureType == "" {
		return fmt.Sprintf("Записав(ла) тиск: %d/%d, пульс %d.", systolic, diastolic, pulse)
	}
	return fmt.Sprintf("Тиск %s : %d %d %d записано.", measureType, systolic, diastolic, pulse)
}

func measureEscalationNotice(subjectLabel string) string {
	return fmt.Sprintf("Ескалація: %s не надіслав(ла) коректні дані тиску.", subjectLabel)
}

func formatLocal(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}

// occurrenceLabel renders the weekday/day-part label shown to the subject,
// e.g. "Пн ранок". Cached on the instance at creation and never recomputed.
func occurrenceLabel(s *config.Subject, t time.Time) string {
	weekday := s.Labels.Weekday[(int(t.Weekday())+6)%7] // Monday first
	th, tm := config.ParseHHMM(s.Labels.ThresholdHHMM)
	part := s.Labels.DaypartMorning
	if t.Hour() > th || (t.Hour() == th && t.Minute() >= tm) {
		part = s.Labels.DaypartEvening
	}
	return weekday + " " + part
}
