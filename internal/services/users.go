package services

import (
	"github.com/google/uuid"
	"github.com/stagecast/distributor/internal/models"
)

// GetOrCreateUserByUid resolves the external identity subject to a local
// user record, creating one on first contact.
func (d *Distributor) GetOrCreateUserByUid(uid, name, avatarURL string) (*models.User, error) {
	var user models.User
	err := d.db.First(&user, "uid = ?", uid).Error
	if err == nil {
		return &user, nil
	}
	if translateNotFound(err) != ErrNotFound {
		return nil, err
	}

	user = models.User{
		ID:        uuid.NewString(),
		Uid:       uid,
		Name:      name,
		AvatarURL: avatarURL,
	}
	if err := d.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser fetches one user by id.
func (d *Distributor) GetUser(userID string) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

// UpdateUserRequest is a client-originated user patch. canCreateStage is
// write-protected and has no field here; a raw payload carrying it is
// stripped before this struct is built.
type UpdateUserRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

// UpdateUser applies a patch to the caller's own profile. The change
// notification for the safe subset is sent optimistically before
// persistence.
func (d *Distributor) UpdateUser(userID string, req *UpdateUserRequest) error {
	cols := map[string]interface{}{}
	payload := map[string]interface{}{"_id": userID}
	if req.Name != nil {
		cols["name"] = *req.Name
		payload["name"] = *req.Name
	}
	if req.AvatarURL != nil {
		cols["avatar_url"] = *req.AvatarURL
		payload["avatarUrl"] = *req.AvatarURL
	}
	if len(cols) == 0 {
		return nil
	}

	d.SendToUser(userID, EventUserChanged, payload)

	res := d.db.Model(&models.User{}).Where("id = ?", userID).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user and everything they own: an active stage
// session is ended first, then every device (each cascading its tracks,
// sound cards and authored overrides) and every stage membership.
func (d *Distributor) DeleteUser(userID string) error {
	user, err := d.GetUser(userID)
	if err != nil {
		return err
	}

	if user.InsideStage() {
		if err := d.LeaveStage(userID); err != nil && err != ErrNotInsideStage {
			return err
		}
	}

	var devices []models.Device
	if err := d.db.Find(&devices, "user_id = ?", userID).Error; err != nil {
		return err
	}
	var members []models.StageMember
	if err := d.db.Find(&members, "user_id = ?", userID).Error; err != nil {
		return err
	}

	branches := make([]func() error, 0, len(devices)+len(members)+2)
	for _, device := range devices {
		device := device
		branches = append(branches, func() error {
			return d.DeleteDevice(device.ID)
		})
	}
	for _, member := range members {
		member := member
		branches = append(branches, func() error {
			return d.deleteStageMemberCascade(&member)
		})
	}
	branches = append(branches,
		func() error {
			return d.db.Delete(&models.StageAdmin{}, "user_id = ?", userID).Error
		},
		func() error {
			return d.db.Delete(&models.StageSoundEditor{}, "user_id = ?", userID).Error
		},
	)

	if err := runBranches(branches...); err != nil {
		return cascadeError("delete user", userID, err)
	}

	if err := d.db.Delete(&models.User{}, "id = ?", userID).Error; err != nil {
		return err
	}
	d.SendToUser(userID, EventUserRemoved, userID)
	return nil
}
