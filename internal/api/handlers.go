package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/appointment"
	"github.com/gmsas95/medimate/internal/medicine"
	"github.com/gmsas95/medimate/internal/profile"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   "0.1.0",
		"timestamp": time.Now().Unix(),
	})
}

// ==================== Medicines ====================

func (s *Server) handleListMedicines(c *fiber.Ctx) error {
	medicines, err := s.medicines.Medicines()
	if err != nil {
		return s.fail(c, err)
	}
	if medicines == nil {
		medicines = []medicine.Medicine{}
	}
	return c.JSON(medicines)
}

func (s *Server) handleAddMedicine(c *fiber.Ctx) error {
	var draft medicine.Draft
	if err := c.BodyParser(&draft); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	added, err := s.medicines.Add(draft)
	if added == nil && err != nil {
		return s.fail(c, err)
	}
	if err != nil {
		// Saved but under-scheduled: surface both.
		return c.Status(201).JSON(fiber.Map{"medicine": added, "warning": err.Error()})
	}
	return c.Status(201).JSON(added)
}

func (s *Server) handleUpdateMedicine(c *fiber.Ctx) error {
	var patch medicine.Patch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	updated, err := s.medicines.Update(c.Params("id"), patch)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) handleDeleteMedicine(c *fiber.Ctx) error {
	if err := s.medicines.Delete(c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(204)
}

func (s *Server) handleMarkTaken(c *fiber.Ctx) error {
	var req struct {
		ScheduledTime string `json:"scheduledTime"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
	}

	if err := s.medicines.MarkTaken(c.Params("id"), req.ScheduledTime); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(204)
}

func (s *Server) handleMarkSkipped(c *fiber.Ctx) error {
	var req struct {
		ScheduledTime string `json:"scheduledTime"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		}
	}

	if err := s.medicines.MarkSkipped(c.Params("id"), req.ScheduledTime); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(204)
}

// ==================== Doses ====================

func (s *Server) handleUpcomingDoses(c *fiber.Ctx) error {
	medicines, err := s.medicines.Medicines()
	if err != nil {
		return s.fail(c, err)
	}
	doses := medicine.UpcomingDoses(medicines, time.Now())
	if doses == nil {
		doses = []medicine.UpcomingDose{}
	}
	return c.JSON(doses)
}

// ==================== History ====================

func (s *Server) handleHistory(c *fiber.Ctx) error {
	// backfill=true resolves stale pending records and fills day gaps
	// before reading.
	if c.QueryBool("backfill", false) {
		days, err := s.ledger.FillMissing(time.Now())
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(days)
	}

	days, err := s.ledger.History()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(days)
}

func (s *Server) handleHistoryStats(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 1 {
		return c.Status(400).JSON(fiber.Map{"error": "days must be positive"})
	}

	now := time.Now()
	stats, err := s.ledger.StatsBetween(now.AddDate(0, 0, -(days-1)), now)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(stats)
}

// ==================== Appointments ====================

func (s *Server) handleListAppointments(c *fiber.Ctx) error {
	appointments, err := s.appointments.Appointments()
	if err != nil {
		return s.fail(c, err)
	}
	if appointments == nil {
		appointments = []appointment.Appointment{}
	}
	return c.JSON(appointments)
}

func (s *Server) handleUpcomingAppointments(c *fiber.Ctx) error {
	upcoming, err := s.appointments.Upcoming(time.Now())
	if err != nil {
		return s.fail(c, err)
	}
	if upcoming == nil {
		upcoming = []appointment.Appointment{}
	}
	return c.JSON(upcoming)
}

func (s *Server) handleAddAppointment(c *fiber.Ctx) error {
	var draft appointment.Draft
	if err := c.BodyParser(&draft); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	added, err := s.appointments.Add(draft)
	if added == nil && err != nil {
		return s.fail(c, err)
	}
	if err != nil {
		return c.Status(201).JSON(fiber.Map{"appointment": added, "warning": err.Error()})
	}
	return c.Status(201).JSON(added)
}

func (s *Server) handleUpdateAppointment(c *fiber.Ctx) error {
	var draft appointment.Draft
	if err := c.BodyParser(&draft); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	updated, err := s.appointments.Update(c.Params("id"), draft)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) handleDeleteAppointment(c *fiber.Ctx) error {
	if err := s.appointments.Delete(c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(204)
}

// ==================== Profile / Contacts / Settings ====================

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	p, err := s.profiles.Profile()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(p)
}

func (s *Server) handleSaveProfile(c *fiber.Ctx) error {
	var p profile.Profile
	if err := c.BodyParser(&p); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := s.profiles.SaveProfile(p); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(p)
}

func (s *Server) handleListContacts(c *fiber.Ctx) error {
	contacts, err := s.profiles.Contacts()
	if err != nil {
		return s.fail(c, err)
	}
	if contacts == nil {
		contacts = []profile.Contact{}
	}
	return c.JSON(contacts)
}

func (s *Server) handleAddContact(c *fiber.Ctx) error {
	var contact profile.Contact
	if err := c.BodyParser(&contact); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	added, err := s.profiles.AddContact(contact)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(201).JSON(added)
}

func (s *Server) handleUpdateContact(c *fiber.Ctx) error {
	var contact profile.Contact
	if err := c.BodyParser(&contact); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	updated, err := s.profiles.UpdateContact(c.Params("id"), contact)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) handleDeleteContact(c *fiber.Ctx) error {
	if err := s.profiles.DeleteContact(c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(204)
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	settings, err := s.profiles.Settings()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(settings)
}

func (s *Server) handleSaveSettings(c *fiber.Ctx) error {
	var settings profile.Settings
	if err := c.BodyParser(&settings); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := s.profiles.SaveSettings(settings); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(settings)
}

// ==================== Data ====================

func (s *Server) handleWipe(c *fiber.Ctx) error {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.BodyParser(&req); err != nil || !req.Confirm {
		return c.Status(400).JSON(fiber.Map{"error": "wipe requires {\"confirm\": true}"})
	}

	if err := s.profiles.Wipe(s.gateway); err != nil {
		return s.fail(c, err)
	}

	s.logger.Warn("Data wiped via API", zap.String("ip", c.IP()))
	return c.SendStatus(204)
}
