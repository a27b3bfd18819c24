package auth

// Permission is a single capability checked at the route boundary.
type Permission uint

const (
	PermAppointmentList Permission = iota
	PermAppointmentBook
	PermAppointmentView
	PermAppointmentReschedule
	PermAppointmentCancel
	PermAppointmentComplete
	PermAppointmentDelete
	PermAppointmentViewAny

	PermDoctorDirectory
	PermDoctorPortal
	PermNursePortal
	PermPatientPortal

	PermPatientList
	PermPatientView
	PermPatientViewOwn
	PermPatientUpdate
	PermPatientUpdateOwn
	PermPatientDelete

	PermRecordRead
	PermRecordReadOwn
	PermRecordWrite
	PermRecordDelete

	PermMetricRead
	PermMetricReadOwn
	PermMetricWrite
	PermMetricWriteOwn

	PermDocumentUpload
	PermDocumentListByPatient
	PermDocumentDownload
	PermDocumentDownloadOwn
	PermDocumentDelete

	PermUserManage
	PermStatisticsView
	PermAuditRead

	permCount
)

// PermissionSet is a bitset over Permission.
type PermissionSet uint64

func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s |= 1 << p
	}
	return s
}

func (s PermissionSet) Has(p Permission) bool {
	return p < permCount && s&(1<<p) != 0
}

func (s PermissionSet) Union(o PermissionSet) PermissionSet {
	return s | o
}

var rolePermissions = map[Role]PermissionSet{
	RoleAdmin: NewPermissionSet(
		PermAppointmentList, PermAppointmentView, PermAppointmentViewAny, PermAppointmentDelete,
		PermDoctorDirectory, PermPatientPortal,
		PermPatientList, PermPatientView, PermPatientUpdate, PermPatientDelete,
		PermRecordRead, PermRecordDelete,
		PermMetricRead,
		PermDocumentDelete,
		PermUserManage, PermStatisticsView, PermAuditRead,
	),
	RoleDoctor: NewPermissionSet(
		PermAppointmentList, PermAppointmentView, PermAppointmentReschedule,
		PermAppointmentCancel, PermAppointmentComplete,
		PermDoctorDirectory, PermDoctorPortal,
		PermPatientList, PermPatientView,
		PermRecordRead, PermRecordWrite,
		PermMetricRead, PermMetricWrite,
		PermDocumentListByPatient, PermDocumentDownload,
	),
	RoleNurse: NewPermissionSet(
		PermAppointmentList, PermAppointmentView, PermAppointmentViewAny,
		PermDoctorDirectory, PermNursePortal,
		PermPatientList, PermPatientView, PermPatientUpdate,
		PermRecordRead, PermRecordWrite,
		PermMetricRead, PermMetricWrite,
	),
	RolePatient: NewPermissionSet(
		PermAppointmentList, PermAppointmentBook, PermAppointmentView,
		PermAppointmentReschedule, PermAppointmentCancel,
		PermDoctorDirectory, PermPatientPortal,
		PermPatientViewOwn, PermPatientUpdateOwn,
		PermRecordReadOwn,
		PermMetricReadOwn, PermMetricWriteOwn,
		PermDocumentUpload, PermDocumentDownloadOwn,
	),
}

// PermissionsFor returns the union of grants for roles.
func PermissionsFor(roles ...Role) PermissionSet {
	var s PermissionSet
	for _, r := range roles {
		s = s.Union(rolePermissions[r])
	}
	return s
}

// Principal is the authenticated caller of one request. It is built once by
// the middleware and passed explicitly into services.
type Principal struct {
	AccountID string
	Email     string
	Name      string
	Role      Role
	// ProfileID is the doctor, nurse or patient id linked to the account.
	ProfileID string

	perms PermissionSet
}

func NewPrincipal(account *Account, profileID string) *Principal {
	return &Principal{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Role:      account.PrimaryRole(),
		ProfileID: profileID,
		perms:     PermissionsFor(account.Roles...),
	}
}

func (p *Principal) Can(perm Permission) bool {
	return p != nil && p.perms.Has(perm)
}

// CanAny reports whether the principal holds at least one of perms.
func (p *Principal) CanAny(perms ...Permission) bool {
	for _, perm := range perms {
		if p.Can(perm) {
			return true
		}
	}
	return false
}

func (p *Principal) Is(role Role) bool {
	return p != nil && p.Role == role
}

// CanReachPatient combines a role-wide grant with an ownership grant that
// applies only to the patient's own profile.
func (p *Principal) CanReachPatient(anyPerm, ownPerm Permission, patientID string) bool {
	if p.Can(anyPerm) {
		return true
	}
	return p.Can(ownPerm) && p.Is(RolePatient) && p.ProfileID != "" && p.ProfileID == patientID
}
