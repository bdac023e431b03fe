package db

import (
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// CreateMedication inserts a new active medication reminder for the user.
func (d *Database) CreateMedication(usr int64, name, dosage, timeOfDay, frequency string) error {
	if _, err := d.Conn.Exec(noCtx, `INSERT INTO medications(user_id, medicine_name, dosage, time, frequency)
VALUES($1, $2, $3, $4, $5)`, usr, name, dosage, timeOfDay, frequency); err != nil {
		return errors.Wrap(err, "failed inserting medication")
	}

	return nil
}

// ListActive returns the user's active medication reminders ordered by
// intake time.
func (d *Database) ListActive(usr int64) ([]Medication, error) {
	rows, err := d.Conn.Query(noCtx, `SELECT id, medicine_name, dosage, time, frequency
FROM medications
WHERE user_id=$1 AND active=TRUE
ORDER BY time`, usr)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying medications")
	}
	defer rows.Close()

	return scanMedications(rows, usr)
}

// UsersDueAt returns the distinct users having at least one active
// reminder at exactly the given time of day.
func (d *Database) UsersDueAt(timeOfDay string) ([]int64, error) {
	rows, err := d.Conn.Query(noCtx, `SELECT DISTINCT user_id FROM medications
WHERE time=$1 AND active=TRUE`, timeOfDay)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying due users")
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var usr int64
		if err := rows.Scan(&usr); err != nil {
			return nil, errors.Wrap(err, "failed scanning user ID")
		}
		users = append(users, usr)
	}

	return users, rows.Err()
}

// ActiveDueAt returns the user's active reminders at exactly the given
// time of day.
func (d *Database) ActiveDueAt(usr int64, timeOfDay string) ([]Medication, error) {
	rows, err := d.Conn.Query(noCtx, `SELECT id, medicine_name, dosage, time, frequency
FROM medications
WHERE user_id=$1 AND time=$2 AND active=TRUE`, usr, timeOfDay)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying due medications")
	}
	defer rows.Close()

	return scanMedications(rows, usr)
}

// Deactivate turns off the reminder with the given ID.
func (d *Database) Deactivate(id int64) error {
	if _, err := d.Conn.Exec(noCtx, `UPDATE medications SET active=FALSE WHERE id=$1`, id); err != nil {
		return errors.Wrap(err, "failed deactivating medication")
	}

	return nil
}

// DeleteMedication removes the reminder with the given ID if it belongs
// to the user. It reports whether a row was actually deleted, so a
// cross-owner ID never deletes anything.
func (d *Database) DeleteMedication(id, usr int64) (bool, error) {
	tag, err := d.Conn.Exec(noCtx, `DELETE FROM medications WHERE id=$1 AND user_id=$2`, id, usr)
	if err != nil {
		return false, errors.Wrap(err, "failed deleting medication")
	}

	return tag.RowsAffected() > 0, nil
}

func scanMedications(rows pgx.Rows, usr int64) ([]Medication, error) {
	var meds []Medication
	for rows.Next() {
		med := Medication{UserID: usr, Active: true}
		if err := rows.Scan(&med.ID, &med.Name, &med.Dosage, &med.Time, &med.Frequency); err != nil {
			return nil, errors.Wrap(err, "failed scanning medication")
		}
		meds = append(meds, med)
	}

	return meds, rows.Err()
}
